// Package manifest assembles the ordered compilation output and serializes it.
package manifest

import (
	"sort"

	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/conflict"
)

// Manifest is the terminal artifact of a compilation run.
type Manifest struct {
	Sections  []Section        `json:"sections" yaml:"sections"`
	Conflicts []rules.Conflict `json:"conflicts" yaml:"conflicts"`
}

// Section is a registry section with its ordered rules.
type Section struct {
	ID          int          `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Impact      rules.Impact `json:"impact" yaml:"impact"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Prefixes    []string     `json:"prefixes" yaml:"prefixes"`
	Rules       []Rule       `json:"rules" yaml:"rules"`
}

// Rule is the manifest view of a resolved rule document.
type Rule struct {
	Title             string          `json:"title" yaml:"title"`
	Impact            rules.Impact    `json:"impact" yaml:"impact"`
	ImpactDescription string          `json:"impactDescription,omitempty" yaml:"impactDescription,omitempty"`
	Tags              []string        `json:"tags" yaml:"tags"`
	Source            string          `json:"source" yaml:"source"`
	Status            conflict.Status `json:"status" yaml:"status"`
	SupersededBy      string          `json:"supersededBy,omitempty" yaml:"supersededBy,omitempty"`

	body string
}

// Body returns the opaque rule body, used by the markdown renderer.
func (r Rule) Body() string {
	return r.body
}

// RuleCount returns the number of rules across all sections.
func (m *Manifest) RuleCount() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Rules)
	}
	return n
}

// Build assembles the manifest. Sections keep the given (declared) order;
// within a section rules are ordered by impact rank, then title, then source.
func Build(sections []rules.Section, res *conflict.Resolution) *Manifest {
	m := &Manifest{
		Sections:  make([]Section, 0, len(sections)),
		Conflicts: []rules.Conflict{},
	}

	pos := make(map[int]int, len(sections))
	for i, s := range sections {
		pos[s.ID] = i
		m.Sections = append(m.Sections, Section{
			ID:          s.ID,
			Title:       s.Title,
			Impact:      s.Impact,
			Description: s.Description,
			Prefixes:    append([]string{}, s.Prefixes...),
			Rules:       []Rule{},
		})
	}
	if res == nil {
		return m
	}

	for _, e := range res.Entries {
		i, ok := pos[e.Rule.SectionID]
		if !ok {
			continue
		}
		tags := append([]string{}, e.Rule.Tags...)
		m.Sections[i].Rules = append(m.Sections[i].Rules, Rule{
			Title:             e.Rule.Title,
			Impact:            e.Rule.Impact,
			ImpactDescription: e.Rule.ImpactDescription,
			Tags:              tags,
			Source:            e.Rule.Source,
			Status:            e.Status,
			SupersededBy:      e.SupersededBy,
			body:              e.Rule.Body,
		})
	}

	for i := range m.Sections {
		sortRules(m.Sections[i].Rules)
	}

	for _, c := range res.Conflicts {
		c.Members = append([]string{}, c.Members...)
		c.Differences = append([]string(nil), c.Differences...)
		m.Conflicts = append(m.Conflicts, c)
	}
	sort.SliceStable(m.Conflicts, func(i, j int) bool { return m.Conflicts[i].Key < m.Conflicts[j].Key })
	return m
}

func sortRules(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if ra, rb := a.Impact.Rank(), b.Impact.Rank(); ra != rb {
			return ra < rb
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Source < b.Source
	})
}
