// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"
)

// CodecPreferences is the ordered encoding preference list: the
// high-efficiency combined codec first, the safe generic fallback second.
var CodecPreferences = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm",
}

// MediaSource supplies the live stream the encoder records from. The capture
// handle satisfies this; the pipeline never owns the stream.
type MediaSource interface {
	ReadFrame(ctx context.Context) (internal_type.Frame, error)
}

// Encoder is the platform media recorder boundary. Start delivers encoded
// segments through onChunk in order; a mid-recording failure is reported once
// through onError. Stop flushes every pending segment before returning.
type Encoder interface {
	Start(onChunk func([]byte), onError func(error)) error
	Stop(ctx context.Context) error
}

// EncoderFactory creates encoders for a supported container type.
type EncoderFactory interface {
	Supported(mimeType string) bool
	NewEncoder(source MediaSource, mimeType string) (Encoder, error)
}

// Pipeline accumulates encoded segments of one recording span and assembles
// them into a single immutable artifact on finalize. One start/stop cycle
// emits the completion callback exactly once; a failed run never produces an
// artifact.
type Pipeline struct {
	logger  commons.Logger
	factory EncoderFactory
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time

	mu            sync.Mutex
	recording     bool
	mimeType      string
	chunks        [][]byte
	startedAt     time.Time
	frozenElapsed int
	encoder       Encoder
	runtimeErr    error
	onComplete    func(*internal_type.RecordingArtifact)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock, for deterministic duration tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

func NewPipeline(logger commons.Logger, factory EncoderFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:  logger,
		factory: factory,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnComplete registers the observer invoked with the finalized artifact,
// exactly once per successful start/stop cycle.
func (p *Pipeline) OnComplete(fn func(*internal_type.RecordingArtifact)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onComplete = fn
}

// Start selects the best supported container type, builds an encoder bound to
// the source and begins accumulating segments. The duration timer starts at 0
// from this moment.
func (p *Pipeline) Start(ctx context.Context, source MediaSource) error {
	if source == nil {
		return internal_type.ErrNoActiveDevice
	}

	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already recording: %w", internal_type.ErrRecorderInitFailed)
	}
	p.mu.Unlock()

	mimeType := ""
	for _, candidate := range CodecPreferences {
		if p.factory.Supported(candidate) {
			mimeType = candidate
			break
		}
	}
	if mimeType == "" {
		return fmt.Errorf("no supported container type: %w", internal_type.ErrRecorderInitFailed)
	}

	encoder, err := p.factory.NewEncoder(source, mimeType)
	if err != nil {
		return fmt.Errorf("new encoder for %s: %w", mimeType, internal_type.ErrRecorderInitFailed)
	}

	p.mu.Lock()
	p.recording = true
	p.mimeType = mimeType
	p.chunks = nil
	p.runtimeErr = nil
	p.startedAt = p.clock()
	p.frozenElapsed = 0
	p.encoder = encoder
	p.mu.Unlock()

	if err := encoder.Start(p.appendChunk, p.fail); err != nil {
		p.mu.Lock()
		p.recording = false
		p.encoder = nil
		p.chunks = nil
		p.mu.Unlock()
		return fmt.Errorf("encoder start: %w", internal_type.ErrRecorderInitFailed)
	}

	p.logger.Infof("recording started, container=%s", mimeType)
	return nil
}

// appendChunk accumulates one encoded segment in order. Segments may still
// arrive during the Stop flush; only a failed or reset pipeline drops them.
func (p *Pipeline) appendChunk(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.encoder == nil {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	p.chunks = append(p.chunks, buf)
}

// fail puts the pipeline into a well-defined stopped state after a
// mid-recording encoder error. Accumulated segments are discarded; no
// partial artifact may surface from a failed run.
func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.recording {
		return
	}
	p.recording = false
	p.frozenElapsed = p.elapsedLocked()
	p.encoder = nil
	p.chunks = nil
	p.runtimeErr = fmt.Errorf("%v: %w", err, internal_type.ErrRecordingRuntime)
	p.logger.Errorf("recording failed mid-run: %v", err)
}

// Stop freezes the duration timer, flushes the encoder and assembles the
// accumulated segments into one artifact tagged with the chosen container
// type. Finalization awaits the encoder flush, so the artifact is delivered
// asynchronously with respect to the moment the user hit stop.
func (p *Pipeline) Stop(ctx context.Context) (*internal_type.RecordingArtifact, error) {
	p.mu.Lock()
	if !p.recording {
		runtimeErr := p.runtimeErr
		p.runtimeErr = nil
		p.mu.Unlock()
		if runtimeErr != nil {
			return nil, runtimeErr
		}
		return nil, fmt.Errorf("pipeline not recording: %w", internal_type.ErrRecordingRuntime)
	}
	p.recording = false
	p.frozenElapsed = p.elapsedLocked()
	encoder := p.encoder
	p.mu.Unlock()

	flushErr := encoder.Stop(ctx)

	p.mu.Lock()
	p.encoder = nil
	if p.runtimeErr != nil {
		runtimeErr := p.runtimeErr
		p.runtimeErr = nil
		p.chunks = nil
		p.mu.Unlock()
		return nil, runtimeErr
	}
	if flushErr != nil {
		p.chunks = nil
		p.mu.Unlock()
		return nil, fmt.Errorf("encoder flush: %v: %w", flushErr, internal_type.ErrRecordingRuntime)
	}
	if len(p.chunks) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("no media segments recorded: %w", internal_type.ErrRecordingRuntime)
	}

	total := 0
	for _, c := range p.chunks {
		total += len(c)
	}
	data := make([]byte, 0, total)
	for _, c := range p.chunks {
		data = append(data, c...)
	}
	artifact := &internal_type.RecordingArtifact{
		Data:            data,
		MimeType:        p.mimeType,
		DurationSeconds: p.frozenElapsed,
	}
	p.chunks = nil
	onComplete := p.onComplete
	p.mu.Unlock()

	p.logger.Infof("recording finalized, %d bytes, %ds, container=%s",
		len(artifact.Data), artifact.DurationSeconds, artifact.MimeType)
	if onComplete != nil {
		onComplete(artifact)
	}
	return artifact, nil
}

// Elapsed is the live elapsed-seconds counter while recording and the frozen
// value of the last run otherwise.
func (p *Pipeline) Elapsed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recording {
		return p.elapsedLocked()
	}
	return p.frozenElapsed
}

func (p *Pipeline) elapsedLocked() int {
	elapsed := int(p.clock().Sub(p.startedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Recording reports whether a run is active.
func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

// Reset clears the frozen timer and any stale failure so the next run starts
// from 0. Called when the user discards the prior take.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recording {
		return
	}
	p.frozenElapsed = 0
	p.chunks = nil
	p.runtimeErr = nil
}
