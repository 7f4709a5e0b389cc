package protocol

import "time"

// AudioFrame carries PCM16LE audio pushed into the active recording session.
type AudioFrame struct {
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
}

// Transcript is the final text broadcast after an utterance is decoded.
type Transcript struct {
	UtteranceID string    `json:"utterance_id"`
	Text        string    `json:"text"`
	Samples     int       `json:"samples"`
	Timestamp   time.Time `json:"timestamp"`
}

// DownloadProgress is emitted at file granularity while model artifacts are
// fetched: once after each completed file and once more at full completion.
type DownloadProgress struct {
	Progress float64 `json:"progress"`
}

// ControlReply answers a request-reply control message.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Text  string `json:"text,omitempty"`
}

const (
	SubjectAudioFrame    = "stt.audio.frame"
	SubjectControlStart  = "stt.control.start"
	SubjectControlStop   = "stt.control.stop"
	SubjectStatus        = "stt.status"
	SubjectModelDownload = "stt.model.download"
	SubjectModelProgress = "stt.model.progress"
	SubjectTranscript    = "stt.text.final"
)
