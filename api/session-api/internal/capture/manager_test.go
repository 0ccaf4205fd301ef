// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-capture"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

type fakeStream struct {
	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) ReadFrame(ctx context.Context) (internal_type.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped > 0 {
		return nil, internal_type.ErrNoActiveDevice
	}
	return internal_type.Frame{0x01}, nil
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeDevice struct {
	err     error
	gate    chan struct{} // when set, RequestMedia blocks until closed
	entered chan struct{} // when set, closed as RequestMedia is entered
	streams []*fakeStream
}

func (d *fakeDevice) RequestMedia(ctx context.Context, constraints MediaConstraints) (MediaStream, error) {
	if d.entered != nil {
		close(d.entered)
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	stream := &fakeStream{}
	d.streams = append(d.streams, stream)
	return stream, nil
}

func TestAcquireBindsSingleHandle(t *testing.T) {
	device := &fakeDevice{}
	m := NewManager(newTestLogger(t), device)

	handle, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !m.Live() {
		t.Fatal("expected live handle after acquire")
	}
	if handle.ID() == "" {
		t.Error("expected non-empty handle id")
	}

	if _, err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected second acquire to be rejected while handle is live")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	device := &fakeDevice{}
	m := NewManager(newTestLogger(t), device)

	handle, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	m.Release(handle)
	m.Release(handle)
	m.Release(nil)

	if m.Live() {
		t.Error("expected no live handle after release")
	}
	if got := device.streams[0].stopCount(); got != 1 {
		t.Errorf("expected underlying stream stopped exactly once, got %d", got)
	}
}

func TestHandleUnusableAfterRelease(t *testing.T) {
	device := &fakeDevice{}
	m := NewManager(newTestLogger(t), device)

	handle, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	m.Release(handle)

	if _, err := handle.ReadFrame(context.Background()); !errors.Is(err, internal_type.ErrNoActiveDevice) {
		t.Errorf("expected ErrNoActiveDevice reading a released handle, got %v", err)
	}
}

func TestAcquireAfterReleaseSucceeds(t *testing.T) {
	device := &fakeDevice{}
	m := NewManager(newTestLogger(t), device)

	first, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	m.Release(first)

	second, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if first.ID() == second.ID() {
		t.Error("expected a fresh handle identity per acquisition")
	}
}

func TestAcquireErrorPassesTaxonomyThrough(t *testing.T) {
	device := &fakeDevice{err: fmt.Errorf("user dismissed prompt: %w", internal_type.ErrPermissionDenied)}
	m := NewManager(newTestLogger(t), device)

	_, err := m.Acquire(context.Background())
	if !errors.Is(err, internal_type.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if m.Live() {
		t.Error("expected no live handle after failed acquire")
	}
}

func TestInFlightAcquisitionDiscardedAfterClose(t *testing.T) {
	device := &fakeDevice{gate: make(chan struct{}), entered: make(chan struct{})}
	m := NewManager(newTestLogger(t), device)

	type result struct {
		handle *Handle
		err    error
	}
	results := make(chan result, 1)
	go func() {
		handle, err := m.Acquire(context.Background())
		results <- result{handle, err}
	}()

	// Teardown lands while the permission grant is pending; the
	// eventually-resolved stream must be stopped, not bound.
	<-device.entered
	m.Close()
	close(device.gate)

	res := <-results
	if res.err == nil {
		t.Fatal("expected abandoned acquisition to fail")
	}
	if res.handle != nil {
		t.Fatal("expected no handle from abandoned acquisition")
	}
	if len(device.streams) != 1 {
		t.Fatalf("expected exactly one resolved stream, got %d", len(device.streams))
	}
	if got := device.streams[0].stopCount(); got != 1 {
		t.Errorf("expected resolved stream released immediately, stop count %d", got)
	}
	if m.Live() {
		t.Error("expected no live handle after close")
	}
}

func TestAcquireAfterCloseRejected(t *testing.T) {
	m := NewManager(newTestLogger(t), &fakeDevice{})
	m.Close()
	if _, err := m.Acquire(context.Background()); !errors.Is(err, internal_type.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable after close, got %v", err)
	}
}
