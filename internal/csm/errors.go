// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package csm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

var (
	// ErrSessionExpired is returned by Poll when the manager no longer knows the session.
	ErrSessionExpired = errors.New("csm: session expired")
	ErrNoAnalyticsURL = errors.New("csm: session has no analytics url")
)

// InitError carries the result code of a failed session initialisation.
type InitError struct {
	Code model.ResultCode
	Err  error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("csm init: %s", e.Code)
	}
	return fmt.Sprintf("csm init: %s: %v", e.Code, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// StatusError is a non-success HTTP status from the manager or a tag server.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string { return fmt.Sprintf("csm %s: HTTP %d", e.Op, e.Status) }

// Retryable reports whether the failure is on the server side.
func (e *StatusError) Retryable() bool { return e.Status >= 500 }

// classifyTransport maps a request error onto a result code.
func classifyTransport(err error) model.ResultCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.CodeConnectionTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.CodeConnectionTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && strings.Contains(ue.Err.Error(), "proxyconnect") {
		return model.CodeProxyError
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "proxyconnect" {
		return model.CodeProxyError
	}
	return model.CodeConnectionError
}

// countsAsOutage decides which poll failures trip the breaker. Expiry and
// 4xx answers mean the manager is reachable.
func countsAsOutage(err error) bool {
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
