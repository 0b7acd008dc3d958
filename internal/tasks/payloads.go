package tasks

import "encoding/json"

// VideoPayload is the input for all three pipeline stages. Each stage returns
// it unchanged so the chain threads the same video through.
type VideoPayload struct {
	VideoID int64 `json:"video_id"`
	Force   bool  `json:"force,omitempty"`
}

type ChannelPayload struct {
	ChannelID int64 `json:"channel_id"`
}

// PlatformPayload selects all channels of one platform, e.g. "twitch".
type PlatformPayload struct {
	Platform string `json:"platform"`
}

// FilePayload identifies an ad-hoc transcription job.
type FilePayload struct {
	JobID string `json:"job_id"`
}

func MustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
