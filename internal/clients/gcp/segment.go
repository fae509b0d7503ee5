package gcp

// Segment is one extracted span of text from a lesson resource. Audio
// and video segments carry playback offsets, document segments carry a
// page number.
type Segment struct {
	Text       string  `json:"text"`
	StartSec   float64 `json:"start_sec,omitempty"`
	EndSec     float64 `json:"end_sec,omitempty"`
	Page       int     `json:"page,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}
