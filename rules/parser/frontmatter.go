// Package parser extracts metadata and body text from rule documents.
package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/alexraputa/agent-skills-sub001/rules"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// DefaultListDelimiter separates values of list-valued metadata fields.
const DefaultListDelimiter = ","

var keyValueRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_.-]*)\s*:(?:\s+(.*))?$`)

// Metadata holds the key/value pairs of a document's metadata block.
// Values are plain strings; nested structures are not supported.
type Metadata map[string]string

// Get returns the trimmed value for key. Lookup falls back to a
// case-insensitive match so "impactdescription" finds "impactDescription".
func (m Metadata) Get(key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Value returns the value for key or "" when absent.
func (m Metadata) Value(key string) string {
	v, _ := m.Get(key)
	return v
}

// List splits a list-valued field. A value wrapped in brackets is decoded as
// a YAML flow sequence, anything else is split on delim. Items are trimmed
// and empty items dropped.
func (m Metadata) List(key, delim string) ([]string, error) {
	raw, ok := m.Get(key)
	if !ok || raw == "" {
		return nil, nil
	}
	if delim == "" {
		delim = DefaultListDelimiter
	}

	var items []string
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		if err := yaml.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode list %s: %w", key, err)
		}
	} else {
		items = strings.Split(raw, delim)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// Document is the result of parsing one rule document.
type Document struct {
	// Metadata is empty when the document has no metadata block.
	Metadata Metadata

	// Body is the content after the metadata block.
	Body string

	// HasMetadata is true when a metadata block was present, even if empty.
	HasMetadata bool
}

// ParseFrontMatter splits content into its metadata block and body.
//
// A document that does not open with a "---" line has no metadata block; the
// whole text becomes the body. A block that is opened but never closed, or
// that contains a line which is not "key: value", fails with a parse error.
func ParseFrontMatter(content []byte) (*Document, error) {
	text := string(normalizeNewlines(content))
	text = strings.TrimPrefix(text, "\ufeff")

	first, rest, _ := strings.Cut(text, "\n")
	if strings.TrimRight(first, " \t") != delimiter {
		return &Document{Metadata: Metadata{}, Body: text}, nil
	}

	meta := Metadata{}
	lineNo := 1
	for {
		if rest == "" {
			return nil, &rules.DocumentError{
				Kind: rules.KindParse,
				Line: 1,
				Err:  fmt.Errorf("unterminated metadata block"),
			}
		}
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		lineNo++

		trimmed := strings.TrimSpace(line)
		if strings.TrimRight(line, " \t") == delimiter {
			break
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, err := parseLine(trimmed)
		if err != nil {
			return nil, &rules.DocumentError{
				Kind:     rules.KindParse,
				Line:     lineNo,
				Fragment: trimmed,
				Err:      err,
			}
		}
		for existing := range meta {
			if strings.EqualFold(existing, key) {
				return nil, &rules.DocumentError{
					Kind:     rules.KindParse,
					Line:     lineNo,
					Fragment: trimmed,
					Err:      fmt.Errorf("duplicate key %s", key),
				}
			}
		}
		meta[key] = value
	}

	return &Document{
		Metadata:    meta,
		Body:        strings.TrimLeft(rest, "\n"),
		HasMetadata: true,
	}, nil
}

// parseLine splits a "key: value" line and unquotes quoted values.
func parseLine(line string) (string, string, error) {
	m := keyValueRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", fmt.Errorf("expected key: value")
	}
	key := m[1]
	value := strings.TrimSpace(m[2])

	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
		var unquoted string
		if err := yaml.Unmarshal([]byte(value), &unquoted); err != nil {
			return "", "", fmt.Errorf("invalid quoted value for %s: %w", key, err)
		}
		value = unquoted
	}
	return key, value, nil
}

// FirstHeading returns the text of the first top-level ("# ") heading in body,
// ignoring fenced code blocks. It returns "" when there is none.
func FirstHeading(body string) string {
	inFence := false
	fence := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if inFence {
			if strings.HasPrefix(trimmed, fence) {
				inFence = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fence = trimmed[:3]
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			heading := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			heading = strings.TrimSpace(strings.TrimRight(heading, "#"))
			if heading != "" {
				return heading
			}
		}
	}
	return ""
}

// ContentHash computes a SHA-256 hash of the content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
