package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"

	// FormatYAML is YAML with two-space indentation.
	FormatYAML Format = "yaml"

	// FormatTable is a bordered text table for terminals.
	FormatTable Format = "table"

	// FormatMarkdown is a compiled guide document including rule bodies.
	FormatMarkdown Format = "markdown"
)

// FormatInfo provides metadata about an output format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "JSON manifest for tools and assistants",
	},
	FormatYAML: {
		Name:        FormatYAML,
		MIMEType:    "application/yaml",
		Extension:   ".yaml",
		Description: "YAML manifest",
	},
	FormatTable: {
		Name:        FormatTable,
		MIMEType:    "text/plain",
		Extension:   ".txt",
		Description: "Text table for review in a terminal",
	},
	FormatMarkdown: {
		Name:        FormatMarkdown,
		MIMEType:    "text/markdown",
		Extension:   ".md",
		Description: "Compiled guide with every rule body",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat validates a format name. Matching is case-insensitive and "md"
// and "yml" are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case "md":
		f = FormatMarkdown
	case "yml":
		f = FormatYAML
	}
	if _, ok := FormatRegistry[f]; !ok {
		return "", fmt.Errorf("unknown format %q (supported: %s)", name, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

// FormatNames lists the supported format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Write serializes m to w in the given format.
func Write(w io.Writer, m *Manifest, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode json manifest: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode yaml manifest: %w", err)
		}
		return enc.Close()
	case FormatTable:
		_, err := io.WriteString(w, RenderTable(m))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, RenderMarkdown(m))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Marshal serializes m into a byte slice.
func Marshal(m *Manifest, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
