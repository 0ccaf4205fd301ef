// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_analysis

import (
	internal_type "github.com/rehearslyai/api/session-api/internal/type"
)

// Merge combines the remote payload with the locally finalized eye-contact
// score into the single result record the dashboard renders. Every field is
// remote-authoritative except EyeContactScore: the local value wins whether
// or not the payload carried one.
func Merge(remote *RemotePayload, eyeContactScore int) *internal_type.AnalysisResult {
	result := &internal_type.AnalysisResult{
		ConfidenceScore:   remote.ConfidenceScore,
		ClarityScore:      remote.ClarityScore,
		EngagementScore:   remote.EngagementScore,
		SpeechComposition: remote.SpeechComposition,
		WordCount:         remote.WordCount,
		FillerWordCount:   remote.FillerWordCount,
		PauseCount:        remote.PauseCount,
		Strengths:         remote.Strengths,
		Weaknesses:        remote.Weaknesses,
		EyeContactScore:   eyeContactScore,
	}
	if len(remote.NextSteps) > 0 {
		result.NextSteps = append([]string(nil), remote.NextSteps...)
	}
	return result
}
