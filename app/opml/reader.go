package opml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lysyi3m/rss-digest/app/feed"
)

// ParseError reports an OPML document that could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to parse OPML: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse OPML %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var ErrEmptyDocument = errors.New("empty document")

// Node is a generic element of the outline tree.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Node     `xml:",any"`
}

func (n Node) Name() string {
	return n.XMLName.Local
}

// Attr returns the value of the named attribute, matched case-insensitively.
func (n Node) Attr(name string) string {
	for _, attr := range n.Attrs {
		if strings.EqualFold(attr.Name.Local, name) {
			return attr.Value
		}
	}
	return ""
}

// Walk visits node and every descendant depth-first in document order.
func Walk(node Node, visit func(Node)) {
	visit(node)
	for _, child := range node.Children {
		Walk(child, visit)
	}
}

func Parse(r io.Reader) ([]feed.Descriptor, error) {
	return parse(r, "")
}

func ParseFile(path string) ([]feed.Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OPML file: %w", err)
	}
	defer file.Close()

	return parse(file, path)
}

// ParseBytes is Parse for an in-memory document such as an upload.
func ParseBytes(data []byte) ([]feed.Descriptor, error) {
	return parse(bytes.NewReader(data), "")
}

func parse(r io.Reader, source string) ([]feed.Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Source: source, Err: ErrEmptyDocument}
	}

	var root Node
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true
	if err := decoder.Decode(&root); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}

	// Decode stops after the root element; anything malformed past it still
	// makes the document invalid.
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Source: source, Err: err}
		}
	}

	return Descriptors(root), nil
}

// Descriptors collects feed sources from the tree, keeping the first entry
// for each URL.
func Descriptors(root Node) []feed.Descriptor {
	descriptors := []feed.Descriptor{}
	seen := make(map[string]bool)

	Walk(root, func(n Node) {
		if !strings.EqualFold(n.Name(), "outline") {
			return
		}

		url := strings.TrimSpace(n.Attr("xmlUrl"))
		if url == "" || seen[url] {
			return
		}
		seen[url] = true

		title := n.Attr("title")
		if title == "" {
			title = n.Attr("text")
		}

		descriptors = append(descriptors, feed.Descriptor{
			Title: strings.TrimSpace(title),
			URL:   url,
		})
	})

	return descriptors
}
