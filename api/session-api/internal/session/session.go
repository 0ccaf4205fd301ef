// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.

// Package internal_session coordinates one rehearsal session: it owns the
// current view, dispatches user actions to the capture manager, inference
// sampler, recording pipeline and analysis client, and owns every transition
// and error policy. Presentation only ever sees the Snapshot projection.
package internal_session

import (
	"context"
	"fmt"
	"sync"

	internal_analysis "github.com/rehearslyai/api/session-api/internal/analysis"
	internal_capture "github.com/rehearslyai/api/session-api/internal/capture"
	internal_recorder "github.com/rehearslyai/api/session-api/internal/recorder"
	internal_sampler "github.com/rehearslyai/api/session-api/internal/sampler"
	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"

	"github.com/google/uuid"
)

// Session is the state machine of one recording session.
//
// View graph: recording → review → submitting → dashboard, with
// review → recording (re-record), submitting → review (failure) and
// dashboard → recording (new take) back-edges. Teardown (Close) is valid from
// any view and always runs full resource release.
//
// At most one of {recording-active, submission-in-flight} is true at any
// instant; the UI busy flag is exactly view == submitting.
type Session struct {
	logger   commons.Logger
	capture  *internal_capture.Manager
	sampler  *internal_sampler.Sampler
	pipeline *internal_recorder.Pipeline
	analysis internal_analysis.Client

	mu              sync.Mutex
	id              string
	view            internal_type.SessionView
	handle          *internal_capture.Handle
	artifact        *internal_type.RecordingArtifact
	result          *internal_type.AnalysisResult
	eyeContactScore int
	lastErr         error
	recording       bool
	canRecord       bool
	acquiring       bool
	closed          bool
	subscribers     []chan internal_type.Snapshot
}

func New(
	logger commons.Logger,
	capture *internal_capture.Manager,
	sampler *internal_sampler.Sampler,
	pipeline *internal_recorder.Pipeline,
	analysis internal_analysis.Client,
) *Session {
	return &Session{
		logger:   logger,
		capture:  capture,
		sampler:  sampler,
		pipeline: pipeline,
		analysis: analysis,
		id:       uuid.New().String(),
		view:     internal_type.ViewRecording,
	}
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// OpenCapture acquires the capture device and binds the live preview. On
// failure the session stays in the recording view with the start-recording
// control disabled; a fresh user attempt is the only retry path.
func (s *Session) OpenCapture(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if s.view != internal_type.ViewRecording {
		s.mu.Unlock()
		return fmt.Errorf("open capture in %s view: %w", s.view, internal_type.ErrInvalidTransition)
	}
	if s.handle != nil || s.acquiring {
		s.mu.Unlock()
		return nil
	}
	s.acquiring = true
	s.mu.Unlock()

	// Suspension point: awaits the user's permission grant.
	handle, err := s.capture.Acquire(ctx)

	s.mu.Lock()
	s.acquiring = false
	if s.closed {
		s.mu.Unlock()
		if handle != nil {
			s.capture.Release(handle)
		}
		return internal_type.ErrSessionClosed
	}
	if err != nil {
		s.lastErr = err
		s.canRecord = false
		s.mu.Unlock()
		s.notify()
		s.logger.Errorf("capture acquisition failed for session %s: %v", s.id, err)
		return err
	}
	s.handle = handle
	s.canRecord = true
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// StartRecording starts the pipeline, the inference sampler and the elapsed
// timer. Requires a bound capture handle; a prior acquisition failure blocks
// this until OpenCapture succeeds again.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.notify()
	defer s.mu.Unlock()

	if s.closed {
		return internal_type.ErrSessionClosed
	}
	if s.view != internal_type.ViewRecording || s.recording {
		return fmt.Errorf("start recording in %s view: %w", s.view, internal_type.ErrInvalidTransition)
	}
	if s.handle == nil || !s.canRecord {
		return internal_type.ErrNoActiveDevice
	}

	if err := s.pipeline.Start(ctx, s.handle); err != nil {
		s.lastErr = err
		return err
	}
	s.sampler.Start(ctx, s.handle)
	s.recording = true
	s.lastErr = nil
	return nil
}

// StopRecording finalizes the take and moves to review. Ordering discipline:
// the sampler halts before the pipeline finalizes, and both have fully
// stopped before the transition's effects are visible, so no orphaned tick can
// fire into the review view. The capture handle is released on leaving the
// recording view.
func (s *Session) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if !s.recording {
		s.mu.Unlock()
		return fmt.Errorf("stop recording while not recording: %w", internal_type.ErrInvalidTransition)
	}
	s.recording = false
	handle := s.handle
	s.handle = nil
	s.canRecord = false
	s.mu.Unlock()

	// Suspension point: the sampler drains its loop and the encoder flushes
	// pending segments. Snapshot reads stay responsive meanwhile; the cleared
	// recording flag already rejects a second stop.
	score := s.sampler.Stop()
	artifact, err := s.pipeline.Stop(ctx)
	s.capture.Release(handle)

	s.mu.Lock()
	if s.closed {
		// Teardown raced the flush; the take is discarded, not bound.
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	s.view = internal_type.ViewReview
	if err != nil {
		// Failed run: review view with no artifact; submit stays blocked until
		// the user re-records.
		s.artifact = nil
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		s.logger.Errorf("recording finalize failed for session %s: %v", s.id, err)
		return err
	}
	s.artifact = artifact
	s.eyeContactScore = score
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	s.logger.Infof("session %s entered review: %ds, eyeContact=%d", s.id, artifact.DurationSeconds, score)
	return nil
}

// ReRecord discards the current take and returns to the recording view with
// the timer reset to 0, then re-acquires the capture device.
func (s *Session) ReRecord(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if s.view != internal_type.ViewReview {
		s.mu.Unlock()
		return fmt.Errorf("re-record in %s view: %w", s.view, internal_type.ErrInvalidTransition)
	}
	s.discardTakeLocked()
	s.view = internal_type.ViewRecording
	s.mu.Unlock()
	s.notify()

	return s.OpenCapture(ctx)
}

// Submit hands the artifact to the remote analyzer and, on success, merges
// its payload with the locally finalized eye-contact score. The submitting
// view is the in-flight guard: no second submission can be issued while one
// is pending. Any failure returns to review with the artifact intact.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if s.view != internal_type.ViewReview {
		s.mu.Unlock()
		return fmt.Errorf("submit in %s view: %w", s.view, internal_type.ErrInvalidTransition)
	}
	if s.artifact == nil {
		s.mu.Unlock()
		return fmt.Errorf("submit without artifact: %w", internal_type.ErrInvalidTransition)
	}
	s.view = internal_type.ViewSubmitting
	s.lastErr = nil
	artifact := s.artifact
	score := s.eyeContactScore
	s.mu.Unlock()
	s.notify()

	// Suspension point: one network round trip, no timeout beyond ctx.
	payload, err := s.analysis.Analyze(ctx, artifact)

	s.mu.Lock()
	if s.closed {
		// Teardown raced the round trip; the result is discarded, not bound.
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if err != nil {
		s.view = internal_type.ViewReview
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		s.logger.Errorf("submission failed for session %s: %v", s.id, err)
		return err
	}
	s.result = internal_analysis.Merge(payload, score)
	s.view = internal_type.ViewDashboard
	s.mu.Unlock()
	s.notify()
	s.logger.Infof("session %s entered dashboard", s.id)
	return nil
}

// Back leaves the dashboard for a fresh take: the artifact and result are
// discarded and the capture device re-acquired.
func (s *Session) Back(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return internal_type.ErrSessionClosed
	}
	if s.view != internal_type.ViewDashboard {
		s.mu.Unlock()
		return fmt.Errorf("go back in %s view: %w", s.view, internal_type.ErrInvalidTransition)
	}
	s.discardTakeLocked()
	s.result = nil
	s.view = internal_type.ViewRecording
	s.mu.Unlock()
	s.notify()

	return s.OpenCapture(ctx)
}

// discardTakeLocked drops the artifact and resets the elapsed timer to 0.
func (s *Session) discardTakeLocked() {
	s.artifact = nil
	s.eyeContactScore = 0
	s.lastErr = nil
	s.pipeline.Reset()
}

// Close tears the session down from any view: periodic activities stop,
// every resource is released, in-flight acquisitions and submissions are
// discarded when they resolve. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	recording := s.recording
	s.recording = false
	s.handle = nil
	s.canRecord = false
	subscribers := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	if recording {
		s.sampler.Stop()
		if _, err := s.pipeline.Stop(ctx); err != nil {
			s.logger.Debugf("pipeline stop during teardown: %v", err)
		}
	}
	s.capture.Close()

	for _, ch := range subscribers {
		close(ch)
	}
	s.logger.Infof("session %s closed", s.id)
	return nil
}

// Snapshot is the read-only projection for presentation.
func (s *Session) Snapshot() internal_type.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() internal_type.Snapshot {
	snapshot := internal_type.Snapshot{
		SessionID:      s.id,
		View:           s.view.String(),
		ElapsedSeconds: s.pipeline.Elapsed(),
		Recording:      s.recording,
		CanRecord:      s.canRecord,
		Busy:           s.view == internal_type.ViewSubmitting,
		HasArtifact:    s.artifact != nil,
		Result:         s.result,
	}
	if s.lastErr != nil {
		snapshot.Error = s.lastErr.Error()
	}
	if s.artifact != nil {
		snapshot.ArtifactMime = s.artifact.MimeType
		snapshot.ArtifactSeconds = s.artifact.DurationSeconds
	}
	return snapshot
}

// Artifact returns the finalized take, nil outside review/dashboard.
func (s *Session) Artifact() *internal_type.RecordingArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Result returns the merged analysis record, nil until the dashboard view.
func (s *Session) Result() *internal_type.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Subscribe registers a snapshot listener fed on every transition. The
// returned cancel removes it; a closed session closes all listener channels.
func (s *Session) Subscribe() (<-chan internal_type.Snapshot, func()) {
	ch := make(chan internal_type.Snapshot, 16)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				close(ch)
				break
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// notify pushes the current snapshot to every subscriber, non-blocking; a
// slow consumer drops updates rather than stalling a transition.
func (s *Session) notify() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshotLocked()
	subscribers := append([]chan internal_type.Snapshot(nil), s.subscribers...)
	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
