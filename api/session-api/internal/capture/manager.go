// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_capture

import (
	"context"
	"fmt"
	"sync"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"

	"github.com/google/uuid"
)

// MediaConstraints is the fixed capture profile requested from the device.
// Video dimensions are ideals: the device may degrade them, never reject
// because of them.
type MediaConstraints struct {
	VideoWidth       int
	VideoHeight      int
	FacingMode       string
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints is the profile every rehearsal session records with.
func DefaultConstraints() MediaConstraints {
	return MediaConstraints{
		VideoWidth:       1280,
		VideoHeight:      720,
		FacingMode:       "user",
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// MediaStream is a live audio+video stream owned by exactly one Handle.
// Stop must be idempotent and must halt every underlying track.
type MediaStream interface {
	ReadFrame(ctx context.Context) (internal_type.Frame, error)
	Stop()
}

// Device is the capture collaborator boundary. Acquisition failures must map
// onto the internal_type capture error taxonomy.
type Device interface {
	RequestMedia(ctx context.Context, constraints MediaConstraints) (MediaStream, error)
}

// Handle is opaque ownership of one acquired stream. After release the handle
// is inert: reads fail and Stop has already run.
type Handle struct {
	id string

	mu       sync.Mutex
	stream   MediaStream
	released bool
}

func (h *Handle) ID() string { return h.id }

// ReadFrame reads one frame from the live stream. Both the inference sampler
// and the recording pipeline read through the handle; neither owns the stream.
func (h *Handle) ReadFrame(ctx context.Context) (internal_type.Frame, error) {
	h.mu.Lock()
	stream, released := h.stream, h.released
	h.mu.Unlock()
	if released || stream == nil {
		return nil, internal_type.ErrNoActiveDevice
	}
	return stream.ReadFrame(ctx)
}

// release stops the underlying stream exactly once.
func (h *Handle) release() {
	h.mu.Lock()
	stream, released := h.stream, h.released
	h.released = true
	h.stream = nil
	h.mu.Unlock()
	if !released && stream != nil {
		stream.Stop()
	}
}

// Manager owns the acquire/release lifecycle of the capture device. At most
// one handle is live at a time; acquiring a second one without releasing the
// first is a programming error and is rejected.
type Manager struct {
	logger commons.Logger
	device Device

	mu         sync.Mutex
	handle     *Handle
	generation uint64
	closed     bool
}

func NewManager(logger commons.Logger, device Device) *Manager {
	return &Manager{
		logger: logger,
		device: device,
	}
}

// Acquire requests the fixed capture profile from the device and binds the
// resulting stream into a fresh handle.
//
// Acquisition awaits a permission grant, so the manager may be closed while
// the request is in flight. A stream that resolves after close (or after the
// generation moved on) is stopped immediately instead of bound, otherwise the
// device lock would leak for the remainder of the process.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("capture manager closed: %w", internal_type.ErrDeviceUnavailable)
	}
	if m.handle != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("capture handle already live: %w", internal_type.ErrDeviceUnavailable)
	}
	generation := m.generation
	m.mu.Unlock()

	stream, err := m.device.RequestMedia(ctx, DefaultConstraints())
	if err != nil {
		return nil, fmt.Errorf("request media: %w", err)
	}

	m.mu.Lock()
	if m.closed || m.generation != generation || m.handle != nil {
		m.mu.Unlock()
		stream.Stop()
		m.logger.Warnf("discarded capture stream resolved after release, generation=%d", generation)
		return nil, fmt.Errorf("acquisition abandoned: %w", internal_type.ErrDeviceUnavailable)
	}
	handle := &Handle{id: uuid.New().String(), stream: stream}
	m.handle = handle
	m.mu.Unlock()

	m.logger.Debugf("acquired capture handle %s", handle.id)
	return handle, nil
}

// Release stops every track behind the handle. It is idempotent and safe to
// call with nil or an already-released handle.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	if m.handle == h {
		m.handle = nil
		m.generation++
	}
	m.mu.Unlock()
	h.release()
	m.logger.Debugf("released capture handle %s", h.id)
}

// Live reports whether a handle is currently bound.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Close releases the current handle, abandons any in-flight acquisition and
// rejects all future ones. Called on session teardown, valid from any state.
func (m *Manager) Close() {
	m.mu.Lock()
	handle := m.handle
	m.handle = nil
	m.generation++
	m.closed = true
	m.mu.Unlock()
	if handle != nil {
		handle.release()
	}
}
