// Package sections builds the section registry from the section definitions
// document and resolves file-name stems to sections by longest prefix.
package sections

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexraputa/agent-skills-sub001/rules"
)

var (
	headingRe    = regexp.MustCompile(`^##\s+(\d+)\.\s+(.+?)\s*\(([^()]*)\)\s*$`)
	numberedRe   = regexp.MustCompile(`^##\s+\d+\.`)
	labelRe      = regexp.MustCompile(`^(?i)(impact|description)\s*:\s*(.*)$`)
	whitespaceRe = regexp.MustCompile(`\s`)
)

// Registry is the immutable set of sections plus the prefix index. It is safe
// for concurrent use once constructed.
type Registry struct {
	sections []rules.Section
	byID     map[int]int
	index    map[string]int // prefix -> position in sections
}

// New builds a registry from sections in declared order. It fails with
// ErrEmptyRegistry when no sections are given and with ErrDuplicatePrefix
// when two sections claim the same prefix.
func New(sections []rules.Section) (*Registry, error) {
	if len(sections) == 0 {
		return nil, &rules.RegistryError{
			Kind: rules.KindEmptyRegistry,
			Err:  errors.New("no sections declared"),
		}
	}

	r := &Registry{
		sections: make([]rules.Section, 0, len(sections)),
		byID:     make(map[int]int, len(sections)),
		index:    make(map[string]int),
	}
	for _, s := range sections {
		if _, dup := r.byID[s.ID]; dup {
			return nil, &rules.RegistryError{
				Kind:     rules.KindInvalidSection,
				Fragment: strconv.Itoa(s.ID),
				Err:      fmt.Errorf("section id %d declared twice", s.ID),
			}
		}
		if !s.Impact.Valid() {
			return nil, &rules.RegistryError{
				Kind:     rules.KindInvalidSection,
				Fragment: string(s.Impact),
				Err:      fmt.Errorf("section %d has no valid impact tier", s.ID),
			}
		}

		pos := len(r.sections)
		prefixes := make([]string, 0, len(s.Prefixes))
		for _, raw := range s.Prefixes {
			p := strings.ToLower(strings.TrimSpace(raw))
			if p == "" || whitespaceRe.MatchString(p) {
				return nil, &rules.RegistryError{
					Kind:     rules.KindInvalidSection,
					Fragment: raw,
					Err:      fmt.Errorf("section %d: invalid prefix", s.ID),
				}
			}
			if owner, exists := r.index[p]; exists {
				if owner == pos {
					continue
				}
				return nil, &rules.RegistryError{
					Kind:     rules.KindDuplicatePrefix,
					Fragment: p,
					Err: fmt.Errorf("prefix claimed by sections %d and %d",
						r.sections[owner].ID, s.ID),
				}
			}
			r.index[p] = pos
			prefixes = append(prefixes, p)
		}
		if len(prefixes) == 0 {
			return nil, &rules.RegistryError{
				Kind:     rules.KindInvalidSection,
				Fragment: s.Title,
				Err:      fmt.Errorf("section %d declares no prefixes", s.ID),
			}
		}

		s.Prefixes = prefixes
		r.byID[s.ID] = pos
		r.sections = append(r.sections, s)
	}
	return r, nil
}

// Load parses the section definitions document and builds the registry.
func Load(content []byte, normalizer *rules.ImpactNormalizer) (*Registry, error) {
	sections, err := Parse(content, normalizer)
	if err != nil {
		return nil, err
	}
	return New(sections)
}

// Parse reads section definitions. Each section is a heading of the form
// "## <order>. <title> (<prefix>[, <prefix>...])" followed by an "Impact:"
// line and an optional "Description:" line. Bold labels ("**Impact:**") are
// accepted.
func Parse(content []byte, normalizer *rules.ImpactNormalizer) ([]rules.Section, error) {
	if normalizer == nil {
		normalizer = rules.DefaultImpactNormalizer()
	}

	var (
		out     []rules.Section
		current *rules.Section
		rawTier string
	)
	finish := func() error {
		if current == nil {
			return nil
		}
		if rawTier == "" {
			return &rules.RegistryError{
				Kind:     rules.KindInvalidSection,
				Fragment: current.Title,
				Err:      fmt.Errorf("section %d has no Impact line", current.ID),
			}
		}
		tier, ok := normalizer.Normalize(rawTier)
		if !ok {
			return &rules.RegistryError{
				Kind:     rules.KindInvalidSection,
				Fragment: rawTier,
				Err:      fmt.Errorf("section %d: unknown impact tier", current.ID),
			}
		}
		current.Impact = tier
		out = append(out, *current)
		current = nil
		rawTier = ""
		return nil
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "## ") || trimmed == "##" {
			if err := finish(); err != nil {
				return nil, err
			}
			m := headingRe.FindStringSubmatch(trimmed)
			if m == nil {
				if numberedRe.MatchString(trimmed) {
					return nil, &rules.RegistryError{
						Kind:     rules.KindInvalidSection,
						Fragment: trimmed,
						Err:      errors.New("section heading must end with a parenthesized prefix list"),
					}
				}
				continue
			}
			id, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, &rules.RegistryError{Kind: rules.KindInvalidSection, Fragment: m[1], Err: err}
			}
			current = &rules.Section{
				ID:       id,
				Title:    strings.TrimSpace(m[2]),
				Prefixes: splitPrefixes(m[3]),
			}
			continue
		}
		if current == nil {
			continue
		}

		label := strings.TrimSpace(strings.NewReplacer("**", "", "__", "").Replace(trimmed))
		lm := labelRe.FindStringSubmatch(label)
		if lm == nil {
			continue
		}
		switch strings.ToLower(lm[1]) {
		case "impact":
			if rawTier == "" {
				rawTier = strings.TrimSpace(lm[2])
			}
		case "description":
			if current.Description == "" {
				current.Description = strings.TrimSpace(lm[2])
			}
		}
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitPrefixes(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns the section owning the longest registered prefix of stem.
// A prefix matches when it equals the stem or is followed by a hyphen, so
// "advanced-data-loading" resolves through "advanced-data" before "advanced".
func (r *Registry) Resolve(stem string) (*rules.Section, bool) {
	key := strings.ToLower(strings.TrimSpace(stem))
	for key != "" {
		if pos, ok := r.index[key]; ok {
			return &r.sections[pos], true
		}
		i := strings.LastIndexByte(key, '-')
		if i <= 0 {
			break
		}
		key = key[:i]
	}
	return nil, false
}

// Lookup returns the section owning exactly prefix.
func (r *Registry) Lookup(prefix string) (*rules.Section, bool) {
	pos, ok := r.index[strings.ToLower(strings.TrimSpace(prefix))]
	if !ok {
		return nil, false
	}
	return &r.sections[pos], true
}

// Section returns the section with the given ID.
func (r *Registry) Section(id int) (*rules.Section, bool) {
	pos, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &r.sections[pos], true
}

// Sections returns a copy of the sections in declared order.
func (r *Registry) Sections() []rules.Section {
	out := make([]rules.Section, len(r.sections))
	for i, s := range r.sections {
		s.Prefixes = append([]string(nil), s.Prefixes...)
		out[i] = s
	}
	return out
}

// Len returns the number of sections.
func (r *Registry) Len() int {
	return len(r.sections)
}
