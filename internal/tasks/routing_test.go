package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFor_RoutesByTaskKind(t *testing.T) {
	r := DefaultRouting()

	require.Equal(t, QueuePriority, r.QueueFor(TypeUpdateLastActive))
	require.Equal(t, QueueGPU, r.QueueFor(TypeTranscribeAudio))
	require.Equal(t, QueueGPU, r.QueueFor(TypeTranscribeFile))
	require.Equal(t, QueueDefault, r.QueueFor(TypePruneJobs))

	// Everything else lands on the broker's own queue.
	require.Equal(t, QueueBroker, r.QueueFor(TypeFetchAudio))
	require.Equal(t, QueueBroker, r.QueueFor(TypeFetchVideos))
	require.Equal(t, QueueBroker, r.QueueFor(TypeParseTranscriptions))
}

func TestQueueFor_CustomRouting(t *testing.T) {
	r := Routing{Default: "d", Priority: "p", GPU: "g", Broker: "b"}

	require.Equal(t, "p", r.QueueFor(TypeUpdateLastActive))
	require.Equal(t, "g", r.QueueFor(TypeTranscribeAudio))
	require.Equal(t, "b", r.QueueFor(TypeFetchAudio))
}

func TestParseQueues(t *testing.T) {
	queues, err := ParseQueues("default,default-queue:3, priority-queue:6")
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"default":        1,
		"default-queue":  3,
		"priority-queue": 6,
	}, queues)
}

func TestParseQueues_Invalid(t *testing.T) {
	_, err := ParseQueues("gpu-queue:zero")
	require.Error(t, err)

	_, err = ParseQueues("")
	require.Error(t, err)
}
