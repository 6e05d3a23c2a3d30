// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultForCode(t *testing.T) {
	cases := map[model.ResultCode]model.SessionResult{
		model.CodeSuccess:           model.ResultInitialised,
		model.CodeConnectionError:   model.ResultNoAnalytics,
		model.CodeConnectionTimeout: model.ResultNoAnalytics,
		model.CodeProxyError:        model.ResultNoAnalytics,
		model.CodeFallbackURL:       model.ResultNoAnalytics,
		model.CodeMalformedURL:      model.ResultFailed,
		model.CodeNonSDKURL:         model.ResultFailed,
		model.CodeNoDVRLive:         model.ResultFailed,
		model.CodeUnknownFormat:     model.ResultFailed,
		404:                         model.ResultFailed,
		503:                         model.ResultNoAnalytics,
		-77:                         model.ResultFailed,
	}
	for code, want := range cases {
		assert.Equal(t, want, ResultForCode(code), code.String())
	}
}

func TestDispatch_InitThenExpire(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := NewSessionRecord("s1", "tok", "https://csm.example/vod.m3u8", model.ModeLive, now)

	tr, err := Dispatch(rec, EventForCode(model.CodeSuccess), now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, model.ResultInitialised, tr.To)
	assert.Equal(t, now.Add(time.Second), rec.InitialisedAt)
	assert.NoError(t, Guard(rec))
	assert.True(t, AnalyticsEnabled(rec))

	_, err = Dispatch(rec, Event{Kind: EvExpired}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.ResultTimeout, rec.Result)
	assert.Equal(t, model.RSessionExpired, rec.Reason)
	assert.ErrorIs(t, Guard(rec), ErrSessionExpired)
	assert.False(t, AnalyticsEnabled(rec))
}

func TestDispatch_IllegalLeavesRecord(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := NewSessionRecord("s1", "tok", "u", model.ModeVOD, now)
	_, err := Dispatch(rec, EventForCode(model.CodeMalformedURL), now)
	require.NoError(t, err)
	require.Equal(t, model.ResultFailed, rec.Result)
	require.Equal(t, model.CodeMalformedURL, rec.Code)

	_, err = Dispatch(rec, EventForCode(model.CodeSuccess), now)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, model.ResultFailed, rec.Result)
	assert.ErrorIs(t, Guard(rec), ErrSessionFailed)
}

func TestClose(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := NewSessionRecord("s1", "tok", "u", model.ModeVOD, now)
	assert.ErrorIs(t, Guard(rec), ErrNotInitialised)
	assert.True(t, Close(rec, now))
	assert.False(t, Close(rec, now))
	assert.ErrorIs(t, Guard(rec), ErrSessionClosed)
}
