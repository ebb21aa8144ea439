// Package xmlutils wraps xmlpath evaluation for the XML payloads the
// application consumes, WebDAV multistatus documents foremost.
package xmlutils

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/xmlpath.v2"
)

// Parse reads an XML document into a navigable node tree.
func Parse(r io.Reader) (*xmlpath.Node, error) {
	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return root, nil
}

// ParseString parses an XML document held in memory.
func ParseString(doc string) (*xmlpath.Node, error) {
	return Parse(strings.NewReader(doc))
}

// ExtractAll returns every value matched by the XPath expression under node.
func ExtractAll(node *xmlpath.Node, xpath string) ([]string, error) {
	path, err := xmlpath.Compile(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath '%s': %w", xpath, err)
	}

	var values []string
	iter := path.Iter(node)
	for iter.Next() {
		values = append(values, iter.Node().String())
	}
	return values, nil
}

// ExtractOne returns the first value matched by the XPath expression, or an
// empty string when nothing matches.
func ExtractOne(node *xmlpath.Node, xpath string) (string, error) {
	values, err := ExtractAll(node, xpath)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// Exists reports whether the XPath expression matches anything under node.
func Exists(node *xmlpath.Node, xpath string) (bool, error) {
	path, err := xmlpath.Compile(xpath)
	if err != nil {
		return false, fmt.Errorf("failed to compile XPath '%s': %w", xpath, err)
	}
	return path.Exists(node), nil
}

// Nodes returns the nodes matched by the XPath expression so callers can
// evaluate relative expressions beneath each one.
func Nodes(node *xmlpath.Node, xpath string) ([]*xmlpath.Node, error) {
	path, err := xmlpath.Compile(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath '%s': %w", xpath, err)
	}

	var nodes []*xmlpath.Node
	iter := path.Iter(node)
	for iter.Next() {
		nodes = append(nodes, iter.Node())
	}
	return nodes, nil
}
