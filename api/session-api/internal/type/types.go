// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_type

// SessionView is the single active view of a rehearsal session. Exactly one
// view is active at a time and only the session state machine moves it.
type SessionView int

const (
	ViewRecording SessionView = iota
	ViewReview
	ViewSubmitting
	ViewDashboard
)

func (v SessionView) String() string {
	switch v {
	case ViewRecording:
		return "recording"
	case ViewReview:
		return "review"
	case ViewSubmitting:
		return "submitting"
	case ViewDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Frame is one encoded video frame read from a live capture stream.
type Frame []byte

// Prediction is a single class probability returned by the attention
// classifier. Predictions arrive ordered; index 0 is the attentive class.
type Prediction struct {
	Label       string
	Probability float64
}

// RecordingArtifact is the finalized media of one recording span. It is
// created once, atomically, when the pipeline finalizes and is immutable
// afterwards.
type RecordingArtifact struct {
	Data            []byte
	MimeType        string
	DurationSeconds int
}

// SpeechComposition is the remote analyzer's breakdown of how the speaking
// time was spent.
type SpeechComposition struct {
	SpeakingPct int `json:"speakingPct"`
	PausePct    int `json:"pausePct"`
	FillerPct   int `json:"fillerPct"`
}

// AnalysisResult is the merged outcome of one submission: every field except
// EyeContactScore is remote-authoritative; EyeContactScore always carries the
// locally sampled attention ratio, never the remote value.
type AnalysisResult struct {
	ConfidenceScore   int               `json:"confidenceScore"`
	ClarityScore      int               `json:"clarityScore"`
	EngagementScore   int               `json:"engagementScore"`
	SpeechComposition SpeechComposition `json:"speechComposition"`
	WordCount         int               `json:"wordCount"`
	FillerWordCount   int               `json:"fillerWordCount"`
	PauseCount        int               `json:"pauseCount"`
	Strengths         string            `json:"strengths"`
	Weaknesses        string            `json:"weaknesses"`
	NextSteps         []string          `json:"nextSteps"`
	EyeContactScore   int               `json:"eyeContactScore"`
}

// Snapshot is the read-only projection the presentation layer consumes. It is
// recomputed on every transition; presentation never mutates session state
// through it.
type Snapshot struct {
	SessionID       string          `json:"sessionId"`
	View            string          `json:"view"`
	ElapsedSeconds  int             `json:"elapsedSeconds"`
	Recording       bool            `json:"recording"`
	CanRecord       bool            `json:"canRecord"`
	Busy            bool            `json:"busy"`
	Error           string          `json:"error,omitempty"`
	HasArtifact     bool            `json:"hasArtifact"`
	ArtifactMime    string          `json:"artifactMimeType,omitempty"`
	ArtifactSeconds int             `json:"artifactDurationSeconds,omitempty"`
	Result          *AnalysisResult `json:"result,omitempty"`
}
