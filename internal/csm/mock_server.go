// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package csm

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// PollReply is one queued analytics answer of the mock server.
type PollReply struct {
	Status int
	Body   string
	Header map[string]string
}

// MockServer is a scriptable session manager, tag server and beacon sink.
type MockServer struct {
	*httptest.Server
	mu sync.Mutex

	vmap        []byte
	playlist    []byte
	initStatus  int
	initDelay   time.Duration
	fallback    bool
	omitSession bool
	dvrWindow   string
	pollEvery   string

	polls       []PollReply
	pollDefault int
	tags        map[string][]byte

	beacons       []string
	trackFailures int
	keepAlives    int
	inits         int
	seq           int
}

// NewMockServer starts a mock manager on a loopback port.
func NewMockServer() *MockServer {
	m := &MockServer{
		initStatus:  http.StatusOK,
		pollDefault: http.StatusNoContent,
		playlist:    []byte("#EXTM3U\n#EXT-X-VERSION:3\n"),
		dvrWindow:   "0,120,120",
		pollEvery:   "5",
		tags:        make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/vod/", m.handleInit(true))
	mux.HandleFunc("/startover/", m.handleInit(true))
	mux.HandleFunc("/live/", m.handleInit(false))
	mux.HandleFunc("/dvr/", m.handleInit(false))
	mux.HandleFunc("/analytics/", m.handlePoll)
	mux.HandleFunc("/tags/", m.handleTag)
	mux.HandleFunc("/track/", m.handleTrack)
	mux.HandleFunc("/play/", m.handlePlay)

	m.Server = httptest.NewServer(mux)
	return m
}

// SetVMAP sets the body served for VOD and start-over initialisation.
func (m *MockServer) SetVMAP(body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vmap = body
}

// SetPlaylist sets the body served for live initialisation.
func (m *MockServer) SetPlaylist(body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlist = body
}

// SetInitStatus makes initialisation answer with status.
func (m *MockServer) SetInitStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initStatus = status
}

// SetInitDelay delays every initialisation answer.
func (m *MockServer) SetInitDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initDelay = d
}

// SetFallback flags initialisation answers as fallback streams.
func (m *MockServer) SetFallback(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = on
}

// OmitSessionID drops the session header, as a plain origin would.
func (m *MockServer) OmitSessionID(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitSession = on
}

// SetDVRWindow sets the window header; empty removes it.
func (m *MockServer) SetDVRWindow(h string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dvrWindow = h
}

// SetPollInterval sets the advertised poll interval in seconds.
func (m *MockServer) SetPollInterval(secs string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollEvery = secs
}

// QueuePoll appends answers consumed by successive polls.
func (m *MockServer) QueuePoll(replies ...PollReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls = append(m.polls, replies...)
}

// SetPollDefault sets the status used once the poll queue is empty.
func (m *MockServer) SetPollDefault(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollDefault = status
}

// SetTag serves body at /tags/<name>.
func (m *MockServer) SetTag(name string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags["/tags/"+name] = body
}

// FailTracking makes the next n beacon requests answer 503.
func (m *MockServer) FailTracking(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackFailures = n
}

// Beacons returns the request URIs of accepted beacons in arrival order.
func (m *MockServer) Beacons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.beacons...)
}

// Inits returns how many initialisation requests reached the server.
func (m *MockServer) Inits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// KeepAlives returns how many keep-alive requests reached the server.
func (m *MockServer) KeepAlives() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepAlives
}

// URL helpers for the routes above.
func (m *MockServer) VODURL() string       { return m.URL + "/vod/main.mpd" }
func (m *MockServer) StartOverURL() string { return m.URL + "/startover/main.mpd" }
func (m *MockServer) LiveURL() string      { return m.URL + "/live/main.m3u8" }
func (m *MockServer) DVRURL() string       { return m.URL + "/dvr/main.m3u8" }
func (m *MockServer) TagURL(name string) string {
	return m.URL + "/tags/" + name
}
func (m *MockServer) TrackURL(name string) string {
	return m.URL + "/track/" + name
}

func (m *MockServer) handleInit(upFront bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.inits++
		m.seq++
		id := fmt.Sprintf("sess-%d", m.seq)
		status, delay := m.initStatus, m.initDelay
		fallback, omit := m.fallback, m.omitSession
		dvr, every := m.dvrWindow, m.pollEvery
		body := m.playlist
		if upFront {
			body = m.vmap
		}
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
		h := w.Header()
		if fallback {
			h.Set(HeaderFallback, "1")
			h.Set(HeaderPlaybackURL, m.URL+"/play/fallback.m3u8")
		} else {
			if !omit {
				h.Set(HeaderSessionID, id)
				h.Set(HeaderAnalyticsURL, m.URL+"/analytics/"+id)
			}
			h.Set(HeaderPlaybackURL, m.URL+"/play/"+id+".m3u8")
			h.Set(HeaderPollInterval, every)
			if strings.HasPrefix(r.URL.Path, "/dvr/") && dvr != "" {
				h.Set(HeaderDVRWindow, dvr)
			}
		}
		_, _ = w.Write(body)
	}
}

func (m *MockServer) handlePoll(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	reply := PollReply{Status: m.pollDefault}
	if len(m.polls) > 0 {
		reply = m.polls[0]
		m.polls = m.polls[1:]
	}
	every := m.pollEvery
	m.mu.Unlock()

	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	w.Header().Set(HeaderPollInterval, every)
	for k, v := range reply.Header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(reply.Status)
	if reply.Body != "" {
		_, _ = w.Write([]byte(reply.Body))
	}
}

func (m *MockServer) handleTag(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	body, ok := m.tags[r.URL.Path]
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(body)
}

func (m *MockServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trackFailures > 0 {
		m.trackFailures--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	m.beacons = append(m.beacons, r.URL.RequestURI())
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	if r.Method == http.MethodHead {
		m.keepAlives++
	}
	m.mu.Unlock()
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write([]byte("#EXTM3U\n"))
}
