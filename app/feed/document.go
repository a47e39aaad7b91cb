package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/htmlindex"
)

// MalformedInputError reports that the uploaded bytes are not well-formed XML.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("invalid XML format: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// ParseDocument parses raw feed bytes into an element tree.
//
// etree reads raw tokens and does not check that end tags match their start
// tags, so the bytes are first run through a strict encoding/xml pass.
func ParseDocument(data []byte) (*etree.Document, error) {
	if err := checkWellFormed(data); err != nil {
		return nil, &MalformedInputError{Err: err}
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &MalformedInputError{Err: err}
	}

	if doc.Root() == nil {
		return nil, &MalformedInputError{Err: errors.New("no root element")}
	}

	return doc, nil
}

func checkWellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	// scopes holds the namespace URIs bound at each open element. The decoder
	// leaves an unbound prefix in Name.Space instead of failing.
	var scopes []map[string]bool
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !sawRoot {
				return errors.New("no element found")
			}
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			scope := map[string]bool{xmlNamespace: true}
			if len(scopes) > 0 {
				for uri := range scopes[len(scopes)-1] {
					scope[uri] = true
				}
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					scope[a.Value] = true
				}
			}
			scopes = append(scopes, scope)

			if t.Name.Space != "" && !scope[t.Name.Space] {
				return fmt.Errorf("unbound prefix %q on element <%s>", t.Name.Space, t.Name.Local)
			}
			for _, a := range t.Attr {
				if a.Name.Space == "" || a.Name.Space == "xmlns" {
					continue
				}
				if !scope[a.Name.Space] {
					return fmt.Errorf("unbound prefix %q on attribute %s", a.Name.Space, a.Name.Local)
				}
			}
		case xml.EndElement:
			scopes = scopes[:len(scopes)-1]
		}
	}
}

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// charsetReader decodes legacy encodings (windows-1251, koi8-r, ...) that
// vendor exports still declare in their XML prolog.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(label))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// qualifiedTag renders an element tag the way it appears in logs:
// "{uri}local" for namespaced elements, "local" otherwise.
func qualifiedTag(el *etree.Element) string {
	if uri := el.NamespaceURI(); uri != "" {
		return "{" + uri + "}" + el.Tag
	}
	return el.Tag
}

func isUnqualified(el *etree.Element) bool {
	return el.NamespaceURI() == ""
}

// descendants returns every element below root in document order, root excluded.
func descendants(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			out = append(out, child)
			walk(child)
		}
	}
	walk(root)
	return out
}

func attrValue(el *etree.Element, key string) (string, bool) {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
