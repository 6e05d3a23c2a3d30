// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVASTDeclaredCharset(t *testing.T) {
	doc, err := ParseVAST(readTestdata(t, "latin1.vast.xml"))
	require.NoError(t, err)
	require.Len(t, doc.Ads, 1)
	assert.Equal(t, "Café crème", doc.Ads[0].InLine.AdTitle)
}

func TestParseRejectsWrongRoot(t *testing.T) {
	_, err := ParseVAST([]byte("<VMAP/>"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "vast", pe.Kind)
	assert.ErrorIs(t, err, ErrNotVAST)

	_, err = ParseVMAP([]byte("<VAST/>"))
	assert.ErrorIs(t, err, ErrNotVMAP)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, "vmap", Sniff(readTestdata(t, "vod.vmap.xml")))
	assert.Equal(t, "vast", Sniff([]byte(`<?xml version="1.0"?><VAST/>`)))
	assert.Equal(t, "", Sniff([]byte("#EXTM3U")))
}

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:15", 15, true},
		{"01:02:03.500", 3723.5, true},
		{" 00:00:00.1 ", 0.1, true},
		{"00:60:00", 0, false},
		{"15", 0, false},
		{"aa:bb:cc", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseTimecode(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrTimecode, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestParseOffset(t *testing.T) {
	off, err := ParseOffset("25%")
	require.NoError(t, err)
	sec, ok := off.Seconds(20)
	assert.True(t, ok)
	assert.Equal(t, 5.0, sec)

	off, err = ParseOffset("end")
	require.NoError(t, err)
	_, ok = off.Seconds(0)
	assert.False(t, ok)

	off, err = ParseOffset("#2")
	require.NoError(t, err)
	assert.Equal(t, OffsetPosition, off.Kind)
	_, ok = off.Seconds(100)
	assert.False(t, ok)

	_, err = ParseOffset("120%")
	assert.Error(t, err)
}
