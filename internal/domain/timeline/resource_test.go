// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"encoding/base64"
	"testing"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exactlyOne(t *testing.T, r *Resource) {
	t.Helper()
	_, hasStr := r.StringData()
	_, hasBytes := r.ByteData()
	require.NotEqual(t, hasStr, hasBytes, "exactly one payload must be populated")
}

func TestResourcePayloads(t *testing.T) {
	html, err := NewResource(model.ResourceHTML, "", "<b>hi</b>", false)
	require.NoError(t, err)
	exactlyOne(t, html)
	s, _ := html.StringData()
	assert.Equal(t, "<b>hi</b>", s)

	enc, err := NewResource(model.ResourceHTML, "", base64.StdEncoding.EncodeToString([]byte("<i>x</i>")), true)
	require.NoError(t, err)
	exactlyOne(t, enc)
	b, _ := enc.ByteData()
	assert.Equal(t, "<i>x</i>", string(b))

	static, err := NewResource(model.ResourceStatic, "image/png", "https://cdn.example/a.png", false)
	require.NoError(t, err)
	exactlyOne(t, static)
	assert.True(t, static.NeedsPrefetch())
	static.SetPrefetched([]byte{0x89, 'P', 'N', 'G'})
	exactlyOne(t, static)
	assert.False(t, static.NeedsPrefetch())
	assert.Equal(t, "https://cdn.example/a.png", static.URI())

	_, err = NewResource(model.ResourceHTML, "", "!!!", true)
	assert.ErrorIs(t, err, ErrResourceData)
	_, err = NewResource(model.ResourceIFrame, "", "  ", false)
	assert.ErrorIs(t, err, ErrResourceData)
}

func TestXMLNode(t *testing.T) {
	n, err := ParseXMLNode(`<Extension type="AdServer" xmlns:yo="urn:example"><yo:Tag id="7">hello</yo:Tag><Other/></Extension>`)
	require.NoError(t, err)
	assert.Equal(t, "Extension", n.Name())
	v, ok := n.Attribute("type")
	require.True(t, ok)
	assert.Equal(t, "AdServer", v)

	kids := n.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, "Tag", kids[0].Name())
	assert.Equal(t, "yo:Tag", kids[0].QualifiedName())
	assert.Equal(t, "urn:example", kids[0].NamespaceURI())
	assert.Equal(t, "hello", kids[0].InnerText())
	assert.Equal(t, "7", kids[0].Attributes()["id"])
	assert.Contains(t, n.String(), "<Other/>")

	_, err = ParseXMLNode("")
	assert.Error(t, err)
}

func TestStreamWindow(t *testing.T) {
	vod := NewStream("s", model.ModeVOD, "src", "play")
	vod.SetWindow(Window{Start: 1, End: 2})
	assert.Equal(t, InvalidDVRWindow, vod.Window())

	dvr := NewStream("s", model.ModeDVRLive, "src", "play")
	dvr.SetWindow(Window{StreamStart: 100, Start: 160, End: 460})
	assert.Equal(t, 300.0, dvr.Window().Size)
}
