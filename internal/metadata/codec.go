// Package metadata encodes plan assignments as namespaced XML fragments
// for attachment to a libvirt domain.
//
// The fragment records only the plan name; constant values are carried
// along for operator inspection (virsh metadata, dumpxml) but are never
// read back. Decoding recovers the name alone, and any malformed or
// absent fragment decodes to "no plan" rather than an error, because a
// never-configured domain simply has no fragment.
package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/roach88/virtplan/internal/plan"
)

// ErrBadConstantKey indicates a constant key cannot be used as an XML
// element name.
var ErrBadConstantKey = errors.New("constant key is not a valid XML element name")

// rootElement is the outer element wrapping every fragment.
const rootElement = "constants"

// planElement carries the assigned plan name.
const planElement = "plan"

// Codec builds and parses plan-assignment fragments for one metadata
// namespace.
type Codec struct {
	// Namespace is the metadata namespace URI the fragment is stored
	// under.
	Namespace string

	// Key is the element key passed to the metadata attachment call.
	Key string
}

// Encode renders the fragment for assigning the named plan. Constants are
// emitted one element per key, sorted, with values escaped by the XML
// encoder. The plan name itself is character data and needs no
// restrictions beyond being non-empty.
func (c Codec) Encode(name string, constants plan.Plan) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty plan name")
	}

	var sb strings.Builder
	enc := xml.NewEncoder(&sb)

	root := xml.StartElement{Name: xml.Name{Local: rootElement}}
	if err := enc.EncodeToken(root); err != nil {
		return "", fmt.Errorf("encode fragment: %w", err)
	}
	if err := encodeTextElement(enc, planElement, name); err != nil {
		return "", err
	}
	for _, k := range constants.Keys() {
		if !validElementName(k) {
			return "", fmt.Errorf("%w: %q", ErrBadConstantKey, k)
		}
		if err := encodeTextElement(enc, k, constants[k]); err != nil {
			return "", err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return "", fmt.Errorf("encode fragment: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("encode fragment: %w", err)
	}
	return sb.String(), nil
}

// Decode extracts the assigned plan name from a fragment. ok is false
// when the fragment is empty, unparsable, or carries no plan element with
// text content.
//
// The whole fragment is parsed before anything is returned: a truncated
// document yields its character data tokens before the syntax error, so
// deciding early would accept garbage.
func (c Codec) Decode(fragment string) (string, bool) {
	if strings.TrimSpace(fragment) == "" {
		return "", false
	}

	dec := xml.NewDecoder(strings.NewReader(fragment))
	var name string
	found := false
	depth := 0 // nesting depth inside the first plan element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
			} else if t.Name.Local == planElement {
				depth = 1
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 && !found {
				if text := strings.TrimSpace(string(t)); text != "" {
					name = text
					found = true
				}
			}
		}
	}
	if !found {
		return "", false
	}
	return name, true
}

// Clear returns the payload that removes the fragment from a domain. The
// metadata attachment call interprets an empty payload as deletion.
func (c Codec) Clear() string {
	return ""
}

func encodeTextElement(enc *xml.Encoder, name, text string) error {
	el := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeElement(text, el); err != nil {
		return fmt.Errorf("encode element %q: %w", name, err)
	}
	return nil
}

// validElementName reports whether s can serve as an XML element name.
// Good enough for constant keys: letter or underscore first, then
// letters, digits, hyphen, underscore, or dot. Colons are rejected to
// keep keys out of namespace-prefix territory.
func validElementName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.') {
			continue
		}
		return false
	}
	return true
}
