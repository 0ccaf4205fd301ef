// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package internal_type

import "errors"

// Capture acquisition failures. All three leave the session in the recording
// view with the start-recording control disabled until a fresh user attempt.
var (
	ErrPermissionDenied  = errors.New("capture permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrUnsupported       = errors.New("capture not supported on this device")
)

// Recording pipeline failures.
var (
	ErrNoActiveDevice     = errors.New("no active capture device")
	ErrRecorderInitFailed = errors.New("recorder initialization failed")
	ErrRecordingRuntime   = errors.New("recording failed at runtime")
)

// ErrModelLoadFailed is never surfaced to the user; a sampler without a model
// only degrades the eye-contact score to 0.
var ErrModelLoadFailed = errors.New("attention model failed to load")

// ErrInvalidTransition is returned for a user event that is not legal in the
// current session view. The event has no side effects.
var ErrInvalidTransition = errors.New("invalid session transition")

// ErrSessionClosed is returned for any event dispatched after teardown.
var ErrSessionClosed = errors.New("session closed")
