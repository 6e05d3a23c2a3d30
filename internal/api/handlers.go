// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/manager"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/domain/timeline"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/go-chi/chi/v5"
)

// SessionView is the JSON shape of a session.
type SessionView struct {
	model.SessionRecord
	LastActivity time.Time `json:"lastActivity"`
	Duration     float64   `json:"duration,omitempty"`
	AdDuration   float64   `json:"adDuration,omitempty"`

	Breaks []timeline.BreakSnapshot `json:"breaks,omitempty"`
}

// NewSessionView snapshots s. withTimeline adds the break list.
func NewSessionView(s *manager.Session, withTimeline bool) SessionView {
	v := SessionView{SessionRecord: s.Record(), LastActivity: s.LastActivity()}
	if st := s.Stream(); st != nil {
		v.Duration = st.Duration()
		v.AdDuration = st.Timeline.TotalAdDuration()
		if withTimeline {
			v.Breaks = st.Timeline.Snapshot()
		}
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.factory.Sessions()),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.factory.Sessions()
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, NewSessionView(sess, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*manager.Session, bool) {
	sess, ok := s.factory.Session(chi.URLParam(r, "token"))
	if !ok {
		writeNotFound(w)
	}
	return sess, ok
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewSessionView(sess, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := s.factory.Shutdown(r.Context(), token)
	switch {
	case errors.Is(err, manager.ErrUnknownSession):
		writeNotFound(w)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		log.FromContext(r.Context()).Info().Str(log.FieldToken, token).Msg("session shut down via api")
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleEvents streams session events as server-sent events until the
// client goes away or the session shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	sub, err := sess.Subscribe(r.Context())
	if err != nil {
		writeError(w, http.StatusGone, err)
		return
	}
	defer func() { _ = sub.Close() }()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn().Err(err).Msg("event stream cannot flush")
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", strconv.FormatUint(ev.Seq, 10), ev.Kind, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
