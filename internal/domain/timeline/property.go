// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"

	"github.com/beevik/etree"
)

// VASTProperty is a named VAST element value with its attributes,
// e.g. AdTitle, Description or a NonLinear width.
type VASTProperty struct {
	Name       string            `json:"name"`
	Value      string            `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attribute returns the attribute value for key.
func (p VASTProperty) Attribute(key string) (string, bool) {
	v, ok := p.Attributes[key]
	return v, ok
}

func findProperty(props []VASTProperty, name string) (VASTProperty, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return VASTProperty{}, false
}

// XMLNode is a read-only view of an arbitrary XML element, used for VAST and
// VMAP extensions whose schema is vendor defined.
type XMLNode struct {
	el *etree.Element
}

// ParseXMLNode parses raw as a document and returns its root element.
func ParseXMLNode(raw string) (*XMLNode, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, fmt.Errorf("parse xml node: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parse xml node: no root element")
	}
	return &XMLNode{el: root}, nil
}

// NewXMLNode wraps an existing etree element.
func NewXMLNode(el *etree.Element) *XMLNode {
	if el == nil {
		return nil
	}
	return &XMLNode{el: el}
}

func (n *XMLNode) Name() string          { return n.el.Tag }
func (n *XMLNode) NamespaceURI() string  { return n.el.NamespaceURI() }
func (n *XMLNode) QualifiedName() string { return n.el.FullTag() }
func (n *XMLNode) InnerText() string     { return n.el.Text() }

// Attributes returns a copy of the element attributes keyed by qualified name.
func (n *XMLNode) Attributes() map[string]string {
	out := make(map[string]string, len(n.el.Attr))
	for _, a := range n.el.Attr {
		out[a.FullKey()] = a.Value
	}
	return out
}

// Attribute returns the value of the attribute named key.
func (n *XMLNode) Attribute(key string) (string, bool) {
	a := n.el.SelectAttr(key)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// Children returns the child elements in document order.
func (n *XMLNode) Children() []*XMLNode {
	kids := n.el.ChildElements()
	out := make([]*XMLNode, 0, len(kids))
	for _, k := range kids {
		out = append(out, &XMLNode{el: k})
	}
	return out
}

// String serialises the node back to XML.
func (n *XMLNode) String() string {
	doc := etree.NewDocument()
	doc.SetRoot(n.el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}
