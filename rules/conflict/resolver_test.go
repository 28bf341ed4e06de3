package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/parser"
)

func rule(source, title, body string) *rules.RuleDocument {
	return &rules.RuleDocument{
		Source:      source,
		Stem:        parser.Stem(source),
		Title:       title,
		Impact:      rules.ImpactLow,
		Body:        body,
		ContentHash: parser.ContentHash([]byte(body)),
		SectionID:   8,
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Prefer Named Exports", "prefer   named\texports"},
		{"  Use useRef ", "USE USEREF"},
		{"Straße", "STRASSE"},
		{"Caf\u00e9", "Cafe\u0301"},
	}
	for _, tt := range tests {
		assert.Equal(t, IdentityKey(tt.a), IdentityKey(tt.b), "%q vs %q", tt.a, tt.b)
	}
	assert.NotEqual(t, IdentityKey("Prefer Named Exports"), IdentityKey("Prefer Named Export"))
}

func TestResolve_Unique(t *testing.T) {
	res := Resolve([]*rules.RuleDocument{
		rule("b.md", "Beta", "b"),
		rule("a.md", "Alpha", "a"),
	})

	assert.Empty(t, res.Conflicts)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "a.md", res.Entries[0].Rule.Source)
	for _, e := range res.Entries {
		assert.Equal(t, StatusUnique, e.Status)
		assert.Empty(t, e.SupersededBy)
	}
}

func TestResolve_DivergentTitles(t *testing.T) {
	short := rule("advanced-named-exports.md", "Prefer Named Exports Outside Resolver Modules", "Use named exports.\n")
	long := rule("advanced-prefer-named-exports.md", "prefer named exports outside  resolver modules",
		"Use named exports everywhere except in resolver modules, which need a default export.\n")

	res := Resolve([]*rules.RuleDocument{short, long})

	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, "prefer named exports outside resolver modules", c.Key)
	assert.Equal(t, rules.ConflictDivergent, c.Kind)
	assert.Equal(t, []string{"advanced-named-exports.md", "advanced-prefer-named-exports.md"}, c.Members)
	assert.Equal(t, "advanced-prefer-named-exports.md", c.Preferred)
	assert.Equal(t, []string{"body", "title"}, c.Differences)

	// Both members are retained.
	require.Len(t, res.Entries, 2)
	assert.Equal(t, StatusSuperseded, res.Entries[0].Status)
	assert.Equal(t, "advanced-prefer-named-exports.md", res.Entries[0].SupersededBy)
	assert.Equal(t, StatusPreferred, res.Entries[1].Status)
}

func TestResolve_Duplicate(t *testing.T) {
	res := Resolve([]*rules.RuleDocument{
		rule("z-copy.md", "Same", "identical"),
		rule("a-copy.md", "Same", "identical"),
	})

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, rules.ConflictDuplicate, res.Conflicts[0].Kind)
	assert.Empty(t, res.Conflicts[0].Differences)
	// Equal body lengths fall back to the smallest source.
	assert.Equal(t, "a-copy.md", res.Conflicts[0].Preferred)
}

func TestPreferred(t *testing.T) {
	tests := []struct {
		name    string
		members []*rules.RuleDocument
		want    string
	}{
		{
			name:    "longest body wins",
			members: []*rules.RuleDocument{rule("a.md", "T", "x"), rule("b.md", "T", "xxx")},
			want:    "b.md",
		},
		{
			name:    "tie goes to smallest source",
			members: []*rules.RuleDocument{rule("c.md", "T", "xx"), rule("b.md", "T", "yy")},
			want:    "b.md",
		},
		{
			name:    "order independent",
			members: []*rules.RuleDocument{rule("b.md", "T", "yy"), rule("c.md", "T", "xx")},
			want:    "b.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preferred(tt.members).Source)
		})
	}
	assert.Nil(t, Preferred(nil))
}

func TestDifferences(t *testing.T) {
	a := rule("a.md", "T", "body")
	b := rule("b.md", "T", "body")
	b.Impact = rules.ImpactHigh
	b.Tags = []string{"x"}
	b.SectionID = 2

	assert.Equal(t, []string{"impact", "section", "tags"}, Differences([]*rules.RuleDocument{a, b}))
	assert.Nil(t, Differences([]*rules.RuleDocument{a}))
}

func TestResolve_Deterministic(t *testing.T) {
	docs := []*rules.RuleDocument{
		rule("c.md", "Shared", "cc"),
		rule("a.md", "Shared", "aa"),
		rule("b.md", "Other", "b"),
	}
	first := Resolve(docs)

	reversed := []*rules.RuleDocument{docs[2], docs[1], docs[0]}
	second := Resolve(reversed)

	assert.Equal(t, first, second)
}

func TestGroupByIdentity(t *testing.T) {
	groups := GroupByIdentity([]*rules.RuleDocument{
		rule("b.md", "Two", "b"),
		nil,
		rule("a.md", "two", "a"),
		rule("c.md", "One", "c"),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "one", groups[0].Key)
	assert.Equal(t, "two", groups[1].Key)
	require.Len(t, groups[1].Members, 2)
	assert.Equal(t, "a.md", groups[1].Members[0].Source)
}
