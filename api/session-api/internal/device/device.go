// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.

// Package internal_device provides synthetic stand-ins for the browser-side
// capture, classification and encoding collaborators so the service runs end
// to end without real hardware. Production deployments plug their own
// implementations in through the same interfaces.
package internal_device

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	internal_capture "github.com/rehearslyai/api/session-api/internal/capture"
	internal_recorder "github.com/rehearslyai/api/session-api/internal/recorder"
	internal_sampler "github.com/rehearslyai/api/session-api/internal/sampler"
	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"
	"github.com/rehearslyai/pkg/utils"
)

// SyntheticDevice emits deterministic counter-stamped frames at a fixed rate.
type SyntheticDevice struct {
	logger commons.Logger
}

func NewSyntheticDevice(logger commons.Logger) *SyntheticDevice {
	return &SyntheticDevice{logger: logger}
}

func (d *SyntheticDevice) RequestMedia(ctx context.Context, constraints internal_capture.MediaConstraints) (internal_capture.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, internal_type.ErrDeviceUnavailable)
	}
	d.logger.Debugf("synthetic media stream opened, ideal=%dx%d facing=%s",
		constraints.VideoWidth, constraints.VideoHeight, constraints.FacingMode)
	return &syntheticStream{}, nil
}

type syntheticStream struct {
	mu      sync.Mutex
	counter uint64
	stopped bool
}

func (s *syntheticStream) ReadFrame(ctx context.Context) (internal_type.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, internal_type.ErrNoActiveDevice
	}
	s.counter++
	frame := make(internal_type.Frame, 16)
	binary.BigEndian.PutUint64(frame, s.counter)
	return frame, nil
}

func (s *syntheticStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// HeuristicLoader loads a classifier that rates frames by their counter
// stamp: a stable placeholder with the same contract as a real model.
type HeuristicLoader struct {
	logger commons.Logger
}

func NewHeuristicLoader(logger commons.Logger) *HeuristicLoader {
	return &HeuristicLoader{logger: logger}
}

func (l *HeuristicLoader) Load(ctx context.Context) (internal_sampler.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, internal_type.ErrModelLoadFailed)
	}
	l.logger.Debugf("heuristic attention classifier loaded")
	return heuristicClassifier{}, nil
}

type heuristicClassifier struct{}

// Classify maps the frame counter onto an attentive probability. Roughly
// three of every four frames score as attentive.
func (heuristicClassifier) Classify(ctx context.Context, frame internal_type.Frame) ([]internal_type.Prediction, error) {
	if len(frame) < 8 {
		return nil, fmt.Errorf("short frame: %d bytes", len(frame))
	}
	counter := binary.BigEndian.Uint64(frame)
	probability := 0.9
	if counter%4 == 0 {
		probability = 0.2
	}
	return []internal_type.Prediction{
		{Label: "attentive", Probability: probability},
		{Label: "distracted", Probability: 1 - probability},
	}, nil
}

// ChunkEncoderFactory builds encoders that read frames off the source at the
// capture rate and emit them as ordered segments, a stand-in for a real
// webm muxer with the same chunked delivery shape.
type ChunkEncoderFactory struct {
	logger   commons.Logger
	interval time.Duration
}

func NewChunkEncoderFactory(logger commons.Logger, interval time.Duration) *ChunkEncoderFactory {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ChunkEncoderFactory{logger: logger, interval: interval}
}

// Supported accepts the whole webm preference list.
func (f *ChunkEncoderFactory) Supported(mimeType string) bool {
	return mimeType == "video/webm" || mimeType == "video/webm;codecs=vp9,opus"
}

func (f *ChunkEncoderFactory) NewEncoder(source internal_recorder.MediaSource, mimeType string) (internal_recorder.Encoder, error) {
	if source == nil {
		return nil, internal_type.ErrNoActiveDevice
	}
	return &chunkEncoder{
		logger:   f.logger,
		source:   source,
		interval: f.interval,
	}, nil
}

type chunkEncoder struct {
	logger   commons.Logger
	source   internal_recorder.MediaSource
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func (e *chunkEncoder) Start(onChunk func([]byte), onError func(error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("encoder already started: %w", internal_type.ErrRecorderInitFailed)
	}
	e.started = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	utils.Go(ctx, func() {
		defer close(done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frame, err := e.source.ReadFrame(ctx)
				if err != nil {
					if ctx.Err() == nil {
						onError(err)
					}
					return
				}
				onChunk(frame)
			}
		}
	})
	return nil
}

// Stop halts the read loop and waits for it, so every segment has been
// delivered by the time Stop returns.
func (e *chunkEncoder) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
