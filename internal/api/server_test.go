// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/csm"
	"github.com/ManuGH/adsession/internal/domain/session/manager"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/outbox"
	"github.com/ManuGH/adsession/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vmap = `<vmap:VMAP xmlns:vmap="http://www.iab.net/videosuite/vmap" version="1.0">
  <vmap:AdBreak timeOffset="start" breakType="linear" breakId="pre">
    <vmap:AdSource id="src">
      <vmap:VASTAdData>
        <VAST version="4.0">
          <Ad id="ad-1">
            <InLine>
              <AdSystem>acme</AdSystem>
              <AdTitle>One</AdTitle>
              <Creatives>
                <Creative id="c-1">
                  <Linear><Duration>00:00:10</Duration></Linear>
                </Creative>
              </Creatives>
            </InLine>
          </Ad>
        </VAST>
      </vmap:VASTAdData>
    </vmap:AdSource>
  </vmap:AdBreak>
</vmap:VMAP>`

type fixture struct {
	factory *manager.Factory
	srv     *httptest.Server
	session *manager.Session
}

func newFixture(t *testing.T, cfg config.APIConfig) *fixture {
	t.Helper()
	mock := csm.NewMockServer()
	t.Cleanup(mock.Close)
	mock.SetVMAP([]byte(vmap))

	sender := tracking.NewSender(tracking.SenderConfig{Workers: 1}, outbox.NewMemoryStore())
	sender.Start(context.Background())
	client := csm.NewClient(csm.Config{Timeout: time.Second, ResourceTimeout: time.Second, BreakerThreshold: 3, BreakerReset: time.Minute})
	f := manager.NewFactory(manager.NewCSMAdapter(client, 3), sender)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.ShutdownAll(ctx)
		_ = sender.Close(ctx)
	})

	ready := make(chan *manager.Session, 1)
	_, err := f.CreateVOD(context.Background(), mock.VODURL(), config.DefaultProperties(), func(s *manager.Session) { ready <- s })
	require.NoError(t, err)
	var sess *manager.Session
	select {
	case sess = <-ready:
	case <-time.After(3 * time.Second):
		t.Fatal("session not initialised")
	}
	require.Equal(t, model.ResultInitialised, sess.Result())

	srv := httptest.NewServer(New(f, cfg).Handler())
	t.Cleanup(srv.Close)
	return &fixture{factory: f, srv: srv, session: sess}
}

func (fx *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(fx.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	fx := newFixture(t, config.APIConfig{})

	resp := fx.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["sessions"])

	resp = fx.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "adsession_http_request_duration_seconds")
}

func TestSessionEndpoints(t *testing.T) {
	fx := newFixture(t, config.APIConfig{})
	token := fx.session.Token()

	resp := fx.get(t, "/sessions/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, token, list[0].Token)
	assert.Empty(t, list[0].Breaks)

	resp = fx.get(t, "/sessions/"+token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	assert.Equal(t, model.ResultInitialised, one.Result)
	require.Len(t, one.Breaks, 1)
	assert.Equal(t, "pre", one.Breaks[0].ID)
	assert.InDelta(t, 10, one.AdDuration, 1e-9)

	assert.Equal(t, http.StatusNotFound, fx.get(t, "/sessions/nope").StatusCode)
	assert.Equal(t, http.StatusNotFound, fx.get(t, "/sessions/nope/events").StatusCode)

	req, err := http.NewRequest(http.MethodDelete, fx.srv.URL+"/sessions/"+token, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	del, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = del.Body.Close()
	assert.Equal(t, http.StatusNotFound, del.StatusCode)
	assert.Equal(t, http.StatusNotFound, fx.get(t, "/sessions/"+token).StatusCode)
}

func TestEventStream(t *testing.T) {
	fx := newFixture(t, config.APIConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fx.srv.URL+"/sessions/"+fx.session.Token()+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, fx.session.PlayerEventDidOccur(model.PlayerStall, 0))

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		if sc.Text() == "event: PlaybackStalled" {
			require.True(t, sc.Scan())
			data = strings.TrimPrefix(sc.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data, "no PlaybackStalled event")
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "PlaybackStalled", ev["kind"])
	assert.Equal(t, fx.session.ID(), ev["sessionId"])

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, fx.factory.Shutdown(shutdownCtx, fx.session.Token()))
	var closed bool
	for sc.Scan() {
		if sc.Text() == "event: closed" {
			closed = true
			break
		}
	}
	assert.True(t, closed, "stream must end when the session shuts down")
}

func TestRateLimitedAPI(t *testing.T) {
	fx := newFixture(t, config.APIConfig{RateLimit: 2, RateWindow: time.Minute})

	assert.Equal(t, http.StatusOK, fx.get(t, "/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, fx.get(t, "/healthz").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, fx.get(t, "/healthz").StatusCode)
}

func TestServeStopsWithContext(t *testing.T) {
	f := manager.NewFactory(nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- New(f, config.APIConfig{}).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
