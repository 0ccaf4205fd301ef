// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package session_api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	internal_analysis "github.com/rehearslyai/api/session-api/internal/analysis"
	internal_capture "github.com/rehearslyai/api/session-api/internal/capture"
	internal_recorder "github.com/rehearslyai/api/session-api/internal/recorder"
	internal_sampler "github.com/rehearslyai/api/session-api/internal/sampler"
	internal_session "github.com/rehearslyai/api/session-api/internal/session"
	internal_type "github.com/rehearslyai/api/session-api/internal/type"
	"github.com/rehearslyai/config"
	"github.com/rehearslyai/pkg/commons"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SessionApi exposes the single active rehearsal session over HTTP. Handlers
// only translate requests into state-machine events; every policy decision
// lives in internal_session.
type SessionApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	device   internal_capture.Device
	loader   internal_sampler.ClassifierLoader
	encoders internal_recorder.EncoderFactory
	analyzer internal_analysis.Client
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active *internal_session.Session
}

func NewSessionApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	device internal_capture.Device,
	loader internal_sampler.ClassifierLoader,
	encoders internal_recorder.EncoderFactory,
	analyzer internal_analysis.Client,
) *SessionApi {
	return &SessionApi{
		cfg:      cfg,
		logger:   logger,
		device:   device,
		loader:   loader,
		encoders: encoders,
		analyzer: analyzer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the CORS middleware in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// session returns the active session, creating it on demand. Components are
// built per session so capture, sampler and pipeline state never leak across
// sessions.
func (api *SessionApi) session() *internal_session.Session {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.active == nil {
		capture := internal_capture.NewManager(api.logger, api.device)
		sampler := internal_sampler.NewSampler(api.logger, api.loader,
			time.Duration(api.cfg.SampleIntervalMs)*time.Millisecond)
		pipeline := internal_recorder.NewPipeline(api.logger, api.encoders)
		api.active = internal_session.New(api.logger, capture, sampler, pipeline, api.analyzer)
		api.logger.Infof("created session %s", api.active.ID())
	}
	return api.active
}

// current returns the active session without creating one.
func (api *SessionApi) current() *internal_session.Session {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.active
}

// Open creates (or reuses) the active session and acquires the capture
// device. An acquisition failure still answers with the snapshot so the
// client can render the disabled state.
func (api *SessionApi) Open(c *gin.Context) {
	sess := api.session()
	if err := sess.OpenCapture(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

func (api *SessionApi) StartRecording(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.StartRecording(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

func (api *SessionApi) StopRecording(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.StopRecording(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

func (api *SessionApi) ReRecord(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.ReRecord(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

func (api *SessionApi) Submit(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.Submit(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

func (api *SessionApi) Back(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.Back(c.Request.Context()); err != nil {
		api.respondError(c, sess, err)
		return
	}
	api.respond(c, sess)
}

// State answers the read-only projection.
func (api *SessionApi) State(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	api.respond(c, sess)
}

// Artifact downloads the finalized take.
func (api *SessionApi) Artifact(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}
	artifact := sess.Artifact()
	if artifact == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no recording artifact"})
		return
	}
	c.Data(http.StatusOK, artifact.MimeType, artifact.Data)
}

// Teardown closes the active session and releases everything it holds.
func (api *SessionApi) Teardown(c *gin.Context) {
	api.mu.Lock()
	sess := api.active
	api.active = nil
	api.mu.Unlock()
	if sess == nil {
		api.noSession(c)
		return
	}
	if err := sess.Close(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StateStream upgrades to a websocket and pushes snapshots: one immediately,
// one on every transition, and one per second while a recording runs so the
// elapsed timer advances client-side.
func (api *SessionApi) StateStream(c *gin.Context) {
	sess := api.current()
	if sess == nil {
		api.noSession(c)
		return
	}

	conn, err := api.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.logger.Errorf("state stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := sess.Subscribe()
	defer cancel()

	// Read pump: only there to observe the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	if err := conn.WriteJSON(sess.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			snapshot := sess.Snapshot()
			if !snapshot.Recording {
				continue
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		}
	}
}

// Close tears down the active session, if any. Used on process shutdown.
func (api *SessionApi) Close(ctx context.Context) error {
	api.mu.Lock()
	sess := api.active
	api.active = nil
	api.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close(ctx)
}

func (api *SessionApi) respond(c *gin.Context, sess *internal_session.Session) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sess.Snapshot()})
}

func (api *SessionApi) noSession(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no active session"})
}

// respondError maps the session error taxonomy onto HTTP statuses and always
// ships the snapshot alongside, so clients render the recovered state (e.g.
// review with the artifact intact after a failed submission).
func (api *SessionApi) respondError(c *gin.Context, sess *internal_session.Session, err error) {
	status := http.StatusInternalServerError
	var submission *internal_analysis.SubmissionError
	switch {
	case errors.Is(err, internal_type.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, internal_type.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, internal_type.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, internal_type.ErrDeviceUnavailable),
		errors.Is(err, internal_type.ErrUnsupported),
		errors.Is(err, internal_type.ErrNoActiveDevice):
		status = http.StatusServiceUnavailable
	case errors.Is(err, internal_type.ErrRecorderInitFailed),
		errors.Is(err, internal_type.ErrRecordingRuntime):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &submission):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "data": sess.Snapshot()})
}
