package transcription

// Request holds parameters for a transcription call.
type Request struct {
	// Audio is the WAV-encoded audio to transcribe.
	Audio []byte `json:"-"`
	// Filename is a hint for the provider, e.g. "chunk-003.wav".
	Filename string `json:"filename,omitempty"`
	// Language is the expected language of the audio (e.g. "en").
	Language string `json:"language,omitempty"`
	// Model is the transcription model to use.
	Model string `json:"model,omitempty"`
	// Prompt carries context from preceding audio to improve accuracy
	// at chunk boundaries.
	Prompt string `json:"prompt,omitempty"`
	// APIKey is a caller-supplied credential for this request. When set it
	// overrides the backend's configured key.
	APIKey string `json:"-"`
	// Diarize requests speaker-attributed utterances when the backend
	// supports them.
	Diarize bool `json:"diarize,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments.
	Segments []Segment `json:"segments,omitempty"`
	// Utterances contains speaker-attributed spans when diarization was
	// requested and the backend supports it.
	Utterances []Utterance `json:"utterances,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
}

// Utterance is a speaker-attributed span of transcript.
type Utterance struct {
	// Speaker is the diarized speaker label (e.g. "SPEAKER_00").
	Speaker string `json:"speaker"`
	// Start is the utterance start time in seconds.
	Start float64 `json:"start"`
	// End is the utterance end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this utterance.
	Text string `json:"text"`
}
