package transcriber

// Segment is a single stretch (up to a few sentences) of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is what the transcription service returns for one audio file.
type Result struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}
