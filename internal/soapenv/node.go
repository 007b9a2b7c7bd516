package soapenv

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Node is one element of a parsed response with namespace prefixes
// resolved away. The services disambiguate everything by local name, so
// local names are all the tree keeps.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

func parseTree(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple document roots")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	return root, nil
}

// Child returns the first child with the given local name, or nil.
// All lookups tolerate a nil receiver so navigation can chain.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the first child with the given name,
// or the empty string when there is none.
func (n *Node) ChildText(name string) string {
	if c := n.Child(name); c != nil {
		return c.Text
	}
	return ""
}

// Attr returns an attribute value by local name.
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}

// Nil reports whether the element was sent as xsi:nil.
func (n *Node) Nil() bool {
	if n == nil {
		return true
	}
	v := n.Attrs["nil"]
	return v == "true" || v == "1"
}
