// Package loader turns raw rule documents into resolved RuleDocuments.
package loader

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/parser"
)

// Recognized metadata keys.
const (
	KeyTitle             = "title"
	KeyImpact            = "impact"
	KeyImpactDescription = "impactDescription"
	KeyTags              = "tags"
	KeyCategory          = "category"
)

// SectionResolver resolves file-name stems and explicit categories to sections.
type SectionResolver interface {
	Resolve(stem string) (*rules.Section, bool)
	Lookup(prefix string) (*rules.Section, bool)
}

// Input is one raw document handed to the loader.
type Input struct {
	// Source identifies the document, usually a path relative to the rules directory.
	Source string

	// Content is the raw document bytes.
	Content []byte
}

// Loader parses documents and resolves them against a section registry.
// It holds no mutable state and may be shared by concurrent workers.
type Loader struct {
	sections   SectionResolver
	parsers    *parser.Registry
	normalizer *rules.ImpactNormalizer
	delimiter  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithParsers overrides the parser registry.
func WithParsers(p *parser.Registry) Option {
	return func(l *Loader) {
		if p != nil {
			l.parsers = p
		}
	}
}

// WithNormalizer overrides the impact normalizer.
func WithNormalizer(n *rules.ImpactNormalizer) Option {
	return func(l *Loader) {
		if n != nil {
			l.normalizer = n
		}
	}
}

// WithListDelimiter sets the delimiter for list-valued metadata.
func WithListDelimiter(d string) Option {
	return func(l *Loader) {
		if d != "" {
			l.delimiter = d
		}
	}
}

// New creates a loader bound to the given section resolver.
func New(sections SectionResolver, opts ...Option) *Loader {
	l := &Loader{
		sections:   sections,
		parsers:    parser.NewRegistry(),
		normalizer: rules.DefaultImpactNormalizer(),
		delimiter:  parser.DefaultListDelimiter,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses and resolves one document. Failures are *rules.DocumentError
// values of kind ParseError, MissingTitleError, UnknownSectionError or
// InvalidImpactError.
func (l *Loader) Load(in Input) (*rules.RuleDocument, error) {
	p := l.parsers.ForFile(in.Source)
	if p == nil {
		return nil, rules.NewDocumentError(rules.KindParse, in.Source, filepath.Ext(in.Source),
			"no parser for file extension")
	}

	doc, err := p.Parse(in.Content)
	if err != nil {
		var de *rules.DocumentError
		if errors.As(err, &de) {
			return nil, de.WithSource(in.Source)
		}
		return nil, &rules.DocumentError{Kind: rules.KindParse, Source: in.Source, Err: err}
	}

	title := strings.TrimSpace(doc.Metadata.Value(KeyTitle))
	if title == "" {
		title = parser.FirstHeading(doc.Body)
	}
	if title == "" {
		return nil, rules.NewDocumentError(rules.KindMissingTitle, in.Source, "",
			"no title in metadata and no top-level heading in body")
	}

	stem := parser.Stem(in.Source)
	category := strings.TrimSpace(doc.Metadata.Value(KeyCategory))
	section, err := l.resolveSection(in.Source, stem, category)
	if err != nil {
		return nil, err
	}

	rawImpact := strings.TrimSpace(doc.Metadata.Value(KeyImpact))
	impact := section.Impact
	inherited := true
	if rawImpact != "" {
		tier, ok := l.normalizer.Normalize(rawImpact)
		if !ok {
			return nil, rules.NewDocumentError(rules.KindInvalidImpact, in.Source, rawImpact,
				"impact does not name a known tier")
		}
		impact = tier
		inherited = false
	}

	tags, err := doc.Metadata.List(KeyTags, l.delimiter)
	if err != nil {
		return nil, &rules.DocumentError{
			Kind:     rules.KindParse,
			Source:   in.Source,
			Fragment: doc.Metadata.Value(KeyTags),
			Err:      err,
		}
	}

	return &rules.RuleDocument{
		Source:            in.Source,
		Stem:              stem,
		Title:             title,
		RawImpact:         rawImpact,
		Impact:            impact,
		ImpactInherited:   inherited,
		ImpactDescription: strings.TrimSpace(doc.Metadata.Value(KeyImpactDescription)),
		Tags:              uniqueSorted(tags),
		Category:          category,
		Body:              doc.Body,
		ContentHash:       parser.ContentHash([]byte(doc.Body)),
		SectionID:         section.ID,
	}, nil
}

// resolveSection applies the category override when present, otherwise the
// file-name stem.
func (l *Loader) resolveSection(source, stem, category string) (*rules.Section, error) {
	if category != "" {
		if s, ok := l.sections.Lookup(category); ok {
			return s, nil
		}
		if s, ok := l.sections.Resolve(category); ok {
			return s, nil
		}
		return nil, rules.NewDocumentError(rules.KindUnknownSection, source, category,
			"category does not match any section prefix")
	}
	if s, ok := l.sections.Resolve(stem); ok {
		return s, nil
	}
	return nil, rules.NewDocumentError(rules.KindUnknownSection, source, stem,
		"no section prefix matches the file-name stem")
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
