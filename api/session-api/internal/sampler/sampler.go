// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_sampler

import (
	"context"
	"sync"
	"time"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"
	"github.com/rehearslyai/pkg/utils"
)

// DefaultInterval is the sampling period while a recording is active.
const DefaultInterval = 300 * time.Millisecond

// attentiveThreshold: index 0 probability at or above this counts the frame
// as looking at the camera.
const attentiveThreshold = 0.5

// Classifier is the on-device attention model boundary. Predictions are
// ordered; only index 0 is read.
type Classifier interface {
	Classify(ctx context.Context, frame internal_type.Frame) ([]internal_type.Prediction, error)
}

// ClassifierLoader loads the attention model. Loading is best effort and
// happens at most once per sampler lifetime; a load failure never blocks
// recording, it only forces the final ratio to 0.
type ClassifierLoader interface {
	Load(ctx context.Context) (Classifier, error)
}

// FrameSource supplies live frames. The capture handle satisfies this.
type FrameSource interface {
	ReadFrame(ctx context.Context) (internal_type.Frame, error)
}

// Sampler accumulates the attention ratio of one recording span. While active
// it ticks on a fixed period, classifies one frame per tick and counts the
// attentive ones. Counters freeze the instant Stop returns.
type Sampler struct {
	logger   commons.Logger
	loader   ClassifierLoader
	interval time.Duration

	mu               sync.Mutex
	classifier       Classifier
	loadAttempted    bool
	active           bool
	eyeContactFrames int
	totalFrames      int
	probabilities    []float32
	cancel           context.CancelFunc
	done             chan struct{}
}

func NewSampler(logger commons.Logger, loader ClassifierLoader, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		logger:   logger,
		loader:   loader,
		interval: interval,
	}
}

// Start resets the accumulator and begins the periodic sampling loop. The
// model is loaded on the first Start and reused across start/stop cycles.
// Starting an already-active sampler is a no-op.
//
// ctx scopes the model load only. The loop itself runs on a sampler-owned
// context: the caller is typically an HTTP handler whose request context is
// cancelled the moment the response is written, and the loop must keep
// ticking for the whole recording span. Only Stop ends it.
func (s *Sampler) Start(ctx context.Context, source FrameSource) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.eyeContactFrames = 0
	s.totalFrames = 0
	s.probabilities = nil
	s.active = true
	loadAttempted := s.loadAttempted
	s.loadAttempted = true
	s.mu.Unlock()

	if !loadAttempted {
		classifier, err := s.loader.Load(ctx)
		if err != nil {
			s.logger.Warnf("attention model load failed, eye contact score degrades to 0: %v", err)
		} else {
			s.mu.Lock()
			s.classifier = classifier
			s.mu.Unlock()
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	utils.Go(loopCtx, func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.sample(loopCtx, source)
			}
		}
	})
}

// sample performs one tick: read a frame, classify it, account for it.
// Collaborator failures (frame read or classification) skip the tick without
// touching either counter, so a transient failure never biases the ratio.
func (s *Sampler) sample(ctx context.Context, source FrameSource) {
	s.mu.Lock()
	classifier := s.classifier
	s.mu.Unlock()
	if classifier == nil {
		return
	}

	frame, err := source.ReadFrame(ctx)
	if err != nil {
		s.logger.Debugf("sampler tick skipped, frame read failed: %v", err)
		return
	}

	predictions, err := classifier.Classify(ctx, frame)
	if err != nil {
		s.logger.Debugf("sampler tick skipped, classification failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.totalFrames++
	if len(predictions) > 0 {
		s.probabilities = append(s.probabilities, float32(predictions[0].Probability))
		if predictions[0].Probability >= attentiveThreshold {
			s.eyeContactFrames++
		}
	}
}

// Stop halts the periodic loop (no tick fires after Stop returns) and returns
// round(100 * eyeContactFrames / totalFrames), or 0 when no tick ever
// completed (model never loaded, or stopped before the first tick).
func (s *Sampler) Stop() int {
	s.mu.Lock()
	if !s.active {
		ratio := utils.Percentage(s.eyeContactFrames, s.totalFrames)
		s.mu.Unlock()
		return ratio
	}
	s.active = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debugf("sampling span finished, frames=%d mean attentive probability=%.2f",
		s.totalFrames, utils.AverageFloat32(s.probabilities))
	return utils.Percentage(s.eyeContactFrames, s.totalFrames)
}

// Counters exposes the frozen accumulator, mainly for the projection layer.
func (s *Sampler) Counters() (eyeContactFrames, totalFrames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eyeContactFrames, s.totalFrames
}
