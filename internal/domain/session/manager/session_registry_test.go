// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryCloseAndWaitDrainsHelpers(t *testing.T) {
	reg := &sessionRegistry{}

	release := make(chan struct{})
	require.True(t, reg.Go(func() { <-release }))
	assert.Equal(t, 1, reg.Running())

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.CloseAndWait(ctx))
	assert.Equal(t, 0, reg.Running())
}

func TestSessionRegistryCloseAndWaitTimeout(t *testing.T) {
	reg := &sessionRegistry{}

	block := make(chan struct{})
	require.True(t, reg.Go(func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := reg.CloseAndWait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestSessionRegistryRejectsHelpersAfterClose(t *testing.T) {
	reg := &sessionRegistry{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.CloseAndWait(ctx))

	assert.False(t, reg.Go(func() {}), "closed registry must not start helpers")
}
