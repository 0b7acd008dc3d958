package tasks

// Task names. The prefix groups tasks by the entity they operate on; the
// broker routes on the full name.
const (
	TypeFetchVideos         = "channel:fetch_videos"
	TypeUpdateLastActive    = "channel:update_last_active"
	TypeFetchAudio          = "video:fetch_audio"
	TypeTranscribeAudio     = "video:transcribe_audio"
	TypeParseTranscriptions = "video:parse_transcriptions"
	TypeTranscribeFile      = "file:transcribe"
	TypePruneJobs           = "jobs:prune"
)

// Queue names consumed by the worker-pool configuration.
const (
	QueueDefault  = "default-queue"
	QueuePriority = "priority-queue"
	QueueGPU      = "gpu-queue"
	QueueBroker   = "default" // the broker's own default queue
)

// Routing is the immutable task-kind to queue-name table, built once at
// startup and passed into the broker. Transcription is GPU-bound and isolated
// so a backlog of heavy jobs cannot starve quick metadata updates; liveness
// refresh is time-sensitive and isolated from both.
type Routing struct {
	Default  string
	Priority string
	GPU      string
	Broker   string
}

func DefaultRouting() Routing {
	return Routing{
		Default:  QueueDefault,
		Priority: QueuePriority,
		GPU:      QueueGPU,
		Broker:   QueueBroker,
	}
}

// QueueFor resolves the queue for a task name. Liveness updates go to the
// priority queue, transcription (audio or file) to the GPU queue,
// miscellaneous maintenance to the default queue, and everything else
// (fetch, parse) to the broker's own queue.
func (r Routing) QueueFor(name string) string {
	switch name {
	case TypeUpdateLastActive:
		return r.Priority
	case TypeTranscribeAudio, TypeTranscribeFile:
		return r.GPU
	case TypePruneJobs:
		return r.Default
	default:
		return r.Broker
	}
}
