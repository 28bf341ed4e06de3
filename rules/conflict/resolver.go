// Package conflict groups rule documents by normalized title and records
// collisions as conflicts without dropping any member.
package conflict

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/alexraputa/agent-skills-sub001/rules"
)

// Status describes a document's standing after resolution.
type Status string

const (
	// StatusUnique marks a document whose identity key is not shared.
	StatusUnique Status = "unique"
	// StatusPreferred marks the representative member of a conflict.
	StatusPreferred Status = "preferred"
	// StatusSuperseded marks a retained, non-preferred member of a conflict.
	StatusSuperseded Status = "superseded"
)

// Entry is a rule document annotated with its resolution status.
type Entry struct {
	Rule         *rules.RuleDocument
	Key          string
	Status       Status
	SupersededBy string // source of the preferred member, set for superseded entries
}

// Resolution is the output of Resolve.
type Resolution struct {
	// Entries holds every input document, ordered by source.
	Entries []Entry

	// Conflicts holds one record per shared identity key, ordered by key.
	Conflicts []rules.Conflict
}

// IdentityKey normalizes a title for grouping: Unicode NFC, full case
// folding, and whitespace runs collapsed to single spaces.
func IdentityKey(title string) string {
	folded := cases.Fold().String(norm.NFC.String(title))
	return strings.Join(strings.Fields(folded), " ")
}

// Group is a set of documents sharing one identity key.
type Group struct {
	Key     string
	Members []*rules.RuleDocument // ordered by source
}

// GroupByIdentity buckets docs by IdentityKey. Groups are ordered by key.
func GroupByIdentity(docs []*rules.RuleDocument) []Group {
	byKey := make(map[string][]*rules.RuleDocument)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		key := IdentityKey(doc.Title)
		byKey[key] = append(byKey[key], doc)
	}

	groups := make([]Group, 0, len(byKey))
	for key, members := range byKey {
		sort.Slice(members, func(i, j int) bool { return members[i].Source < members[j].Source })
		groups = append(groups, Group{Key: key, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Resolve groups docs and resolves the groups in one step.
func Resolve(docs []*rules.RuleDocument) *Resolution {
	return ResolveGroups(GroupByIdentity(docs))
}

// ResolveGroups turns groups into a Resolution. Groups of one pass through as
// unique; larger groups produce a Conflict and one preferred member chosen by
// longest body, then lexically smallest source. No document is removed.
func ResolveGroups(groups []Group) *Resolution {
	res := &Resolution{}
	for _, g := range groups {
		members := g.Members
		if len(members) == 0 {
			continue
		}
		if len(members) == 1 {
			res.Entries = append(res.Entries, Entry{Rule: members[0], Key: g.Key, Status: StatusUnique})
			continue
		}

		preferred := Preferred(members)
		sources := make([]string, 0, len(members))
		for _, m := range members {
			sources = append(sources, m.Source)
			entry := Entry{Rule: m, Key: g.Key, Status: StatusPreferred}
			if m != preferred {
				entry.Status = StatusSuperseded
				entry.SupersededBy = preferred.Source
			}
			res.Entries = append(res.Entries, entry)
		}
		sort.Strings(sources)

		diffs := Differences(members)
		kind := rules.ConflictDivergent
		if len(diffs) == 0 {
			kind = rules.ConflictDuplicate
		}
		res.Conflicts = append(res.Conflicts, rules.Conflict{
			Key:         g.Key,
			Kind:        kind,
			Members:     sources,
			Preferred:   preferred.Source,
			Differences: diffs,
		})
	}

	sort.Slice(res.Entries, func(i, j int) bool {
		return res.Entries[i].Rule.Source < res.Entries[j].Rule.Source
	})
	sort.Slice(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].Key < res.Conflicts[j].Key
	})
	return res
}

// Preferred picks the representative of a group: the longest body wins and
// ties go to the lexically smallest source identifier.
func Preferred(members []*rules.RuleDocument) *rules.RuleDocument {
	var best *rules.RuleDocument
	for _, m := range members {
		if best == nil {
			best = m
			continue
		}
		ml, bl := m.BodyLength(), best.BodyLength()
		if ml > bl || (ml == bl && m.Source < best.Source) {
			best = m
		}
	}
	return best
}

// Differences names the fields whose values are not identical across members.
func Differences(members []*rules.RuleDocument) []string {
	if len(members) < 2 {
		return nil
	}
	fields := map[string]func(*rules.RuleDocument) string{
		"body":              func(d *rules.RuleDocument) string { return d.ContentHash },
		"title":             func(d *rules.RuleDocument) string { return d.Title },
		"impact":            func(d *rules.RuleDocument) string { return string(d.Impact) },
		"impactDescription": func(d *rules.RuleDocument) string { return d.ImpactDescription },
		"tags":              func(d *rules.RuleDocument) string { return strings.Join(d.Tags, "\x00") },
		"category":          func(d *rules.RuleDocument) string { return d.Category },
		"section":           func(d *rules.RuleDocument) string { return strconv.Itoa(d.SectionID) },
	}

	var diffs []string
	for name, get := range fields {
		first := get(members[0])
		for _, m := range members[1:] {
			if get(m) != first {
				diffs = append(diffs, name)
				break
			}
		}
	}
	sort.Strings(diffs)
	return diffs
}
