// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

// AnalyzePath is the analyzer backend's single submission endpoint.
const AnalyzePath = "/api/v1/analysis/analyze"

// FailureKind classifies a failed submission.
type FailureKind string

const (
	NetworkFailure  FailureKind = "network_failure"
	ServerError     FailureKind = "server_error"
	InvalidResponse FailureKind = "invalid_response"
)

// SubmissionError is a recoverable submission failure. The session returns to
// review with the artifact intact so the user can retry manually; no retry is
// automatic.
type SubmissionError struct {
	Kind  FailureKind
	cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("analysis submission failed (%s): %v", e.Kind, e.cause)
}

func (e *SubmissionError) Unwrap() error { return e.cause }

// RemotePayload is the analyzer's response schema. Field names follow its
// JSON contract. EyeContactScore may appear in the payload but is never
// trusted: the locally sampled value always wins in the merge.
type RemotePayload struct {
	ConfidenceScore   int                             `json:"confidenceScore" validate:"gte=0,lte=100"`
	ClarityScore      int                             `json:"clarityScore" validate:"gte=0,lte=100"`
	EngagementScore   int                             `json:"engagementScore" validate:"gte=0,lte=100"`
	SpeechComposition internal_type.SpeechComposition `json:"speechComposition"`
	WordCount         int                             `json:"wordCount" validate:"gte=0"`
	FillerWordCount   int                             `json:"fillerWordCount" validate:"gte=0"`
	PauseCount        int                             `json:"pauseCount" validate:"gte=0"`
	Strengths         string                          `json:"strengths"`
	Weaknesses        string                          `json:"weaknesses"`
	NextSteps         []string                        `json:"nextSteps"`
	EyeContactScore   *int                            `json:"eyeContactScore,omitempty"`
}

// Client is the remote analysis collaborator boundary: artifact in, payload
// out, or a classified failure. One call in flight at a time; the session's
// submitting state enforces that, not this client.
type Client interface {
	Analyze(ctx context.Context, artifact *internal_type.RecordingArtifact) (*RemotePayload, error)
}

type restClient struct {
	logger   commons.Logger
	http     *resty.Client
	validate *validator.Validate
}

// NewClient builds the HTTP analysis client for the given analyzer base URL.
// No timeout is imposed here beyond the caller's context; retry policy stays
// with the user.
func NewClient(logger commons.Logger, baseURL string) Client {
	return &restClient{
		logger:   logger,
		http:     resty.New().SetBaseURL(baseURL),
		validate: validator.New(),
	}
}

func (c *restClient) Analyze(ctx context.Context, artifact *internal_type.RecordingArtifact) (*RemotePayload, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return nil, &SubmissionError{Kind: InvalidResponse, cause: fmt.Errorf("nothing to submit")}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", artifactFileName(artifact.MimeType), bytes.NewReader(artifact.Data)).
		SetFormData(map[string]string{
			"durationSeconds": fmt.Sprintf("%d", artifact.DurationSeconds),
		}).
		Post(AnalyzePath)
	if err != nil {
		c.logger.Errorf("analysis request failed: %v", err)
		return nil, &SubmissionError{Kind: NetworkFailure, cause: err}
	}
	if !resp.IsSuccess() {
		c.logger.Errorf("analysis request rejected: status=%d body=%s", resp.StatusCode(), resp.String())
		return nil, &SubmissionError{
			Kind:  ServerError,
			cause: fmt.Errorf("analyzer returned status %d", resp.StatusCode()),
		}
	}

	var payload RemotePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &SubmissionError{Kind: InvalidResponse, cause: fmt.Errorf("decode analyzer payload: %w", err)}
	}
	if err := c.validate.Struct(&payload); err != nil {
		return nil, &SubmissionError{Kind: InvalidResponse, cause: fmt.Errorf("analyzer payload out of range: %w", err)}
	}

	c.logger.Infof("analysis succeeded: confidence=%d clarity=%d engagement=%d words=%d",
		payload.ConfidenceScore, payload.ClarityScore, payload.EngagementScore, payload.WordCount)
	return &payload, nil
}

// artifactFileName derives the upload file name from the container type.
func artifactFileName(mimeType string) string {
	ext := "webm"
	if i := strings.Index(mimeType, "/"); i >= 0 {
		sub := mimeType[i+1:]
		if j := strings.Index(sub, ";"); j >= 0 {
			sub = sub[:j]
		}
		if sub != "" {
			ext = sub
		}
	}
	return "recording." + ext
}
