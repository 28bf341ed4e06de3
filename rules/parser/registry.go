package parser

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Parser turns raw document bytes into metadata and body.
type Parser interface {
	// Name identifies the parser in logs.
	Name() string

	// Extensions lists the lower-case file extensions the parser handles.
	Extensions() []string

	// Parse parses a document. It must be free of side effects.
	Parse(content []byte) (*Document, error)
}

// MarkdownParser parses markdown documents with an optional metadata block.
type MarkdownParser struct{}

// NewMarkdownParser creates a new markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Name returns the parser name.
func (p *MarkdownParser) Name() string {
	return "markdown"
}

// Extensions returns the file extensions handled by this parser.
func (p *MarkdownParser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Parse parses a markdown document.
func (p *MarkdownParser) Parse(content []byte) (*Document, error) {
	return ParseFrontMatter(content)
}

// Registry manages document parsers keyed by file extension.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates a registry with the markdown and HTML parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}
	r.Register(NewMarkdownParser())
	r.Register(NewHTMLParser())
	return r
}

// Register adds a parser for each of its extensions, replacing earlier ones.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// ForFile returns the parser for filename's extension, or nil.
func (r *Registry) ForFile(filename string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[strings.ToLower(filepath.Ext(filename))]
}

// Extensions lists every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Stem returns the lower-cased file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
