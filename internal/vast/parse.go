// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vast

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/adsession/internal/metrics"
	"golang.org/x/text/encoding/htmlindex"
)

var (
	ErrNotVAST = errors.New("document is not VAST")
	ErrNotVMAP = errors.New("document is not VMAP")
)

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Kind string // "vast" or "vmap"
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Kind, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// charsetReader resolves declared encodings such as ISO-8859-1 or windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func decode(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return dec.Decode(v)
}

func rootName(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local
		}
	}
}

// ParseVAST decodes a VAST document.
func ParseVAST(data []byte) (*Document, error) {
	if rootName(data) != "VAST" {
		metrics.IncVASTParse("vast", "rejected")
		return nil, &ParseError{Kind: "vast", Err: ErrNotVAST}
	}
	var doc Document
	if err := decode(data, &doc); err != nil {
		metrics.IncVASTParse("vast", "error")
		return nil, &ParseError{Kind: "vast", Err: err}
	}
	metrics.IncVASTParse("vast", "ok")
	return &doc, nil
}

// ParseVMAP decodes a VMAP document.
func ParseVMAP(data []byte) (*VMAP, error) {
	if rootName(data) != "VMAP" {
		metrics.IncVASTParse("vmap", "rejected")
		return nil, &ParseError{Kind: "vmap", Err: ErrNotVMAP}
	}
	var doc VMAP
	if err := decode(data, &doc); err != nil {
		metrics.IncVASTParse("vmap", "error")
		return nil, &ParseError{Kind: "vmap", Err: err}
	}
	metrics.IncVASTParse("vmap", "ok")
	return &doc, nil
}

// Sniff reports the document kind by its root element: "vast", "vmap" or "".
func Sniff(data []byte) string {
	switch root := rootName(data); root {
	case "VAST", "VMAP":
		return strings.ToLower(root)
	}
	return ""
}
