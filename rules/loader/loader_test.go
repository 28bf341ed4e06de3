package loader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/sections"
)

func testRegistry(t *testing.T) *sections.Registry {
	t.Helper()
	r, err := sections.New([]rules.Section{
		{ID: 1, Title: "Eliminating Waterfalls", Impact: rules.ImpactCritical, Prefixes: []string{"async"}},
		{ID: 2, Title: "Bundle Size", Impact: rules.ImpactCritical, Prefixes: []string{"bundle"}},
		{ID: 3, Title: "Rendering", Impact: rules.ImpactMedium, Prefixes: []string{"rendering"}},
		{ID: 4, Title: "Advanced Patterns", Impact: rules.ImpactLow, Prefixes: []string{"advanced"}},
	})
	require.NoError(t, err)
	return r
}

func TestLoad_Markdown(t *testing.T) {
	l := New(testRegistry(t))

	content := `---
title: Promise.all() for Independent Operations
impact: CRITICAL
impactDescription: 2-10x improvement
tags: async, parallelization, promises, async
---

## Promise.all() for Independent Operations

Run independent operations concurrently.
`
	doc, err := l.Load(Input{Source: "rules/async-parallel.md", Content: []byte(content)})
	require.NoError(t, err)

	assert.Equal(t, "rules/async-parallel.md", doc.Source)
	assert.Equal(t, "async-parallel", doc.Stem)
	assert.Equal(t, "Promise.all() for Independent Operations", doc.Title)
	assert.Equal(t, "CRITICAL", doc.RawImpact)
	assert.Equal(t, rules.ImpactCritical, doc.Impact)
	assert.False(t, doc.ImpactInherited)
	assert.Equal(t, "2-10x improvement", doc.ImpactDescription)
	assert.Equal(t, []string{"async", "parallelization", "promises"}, doc.Tags)
	assert.Equal(t, 1, doc.SectionID)
	assert.NotEmpty(t, doc.ContentHash)
	assert.Contains(t, doc.Body, "Run independent operations concurrently.")
}

func TestLoad_TitleFromHeading(t *testing.T) {
	l := New(testRegistry(t))

	doc, err := l.Load(Input{
		Source:  "bundle-barrel-imports.md",
		Content: []byte("---\nimpact: high\n---\n# Avoid Barrel File Imports\n\ntext\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Avoid Barrel File Imports", doc.Title)
	assert.Equal(t, rules.ImpactHigh, doc.Impact)
	assert.Equal(t, 2, doc.SectionID)
}

func TestLoad_InheritsSectionImpact(t *testing.T) {
	l := New(testRegistry(t))

	doc, err := l.Load(Input{
		Source:  "rendering-svg-precision.md",
		Content: []byte("---\ntitle: Optimize SVG Precision\n---\nbody\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, rules.ImpactMedium, doc.Impact)
	assert.True(t, doc.ImpactInherited)
	assert.Empty(t, doc.RawImpact)
	assert.Nil(t, doc.Tags)
}

func TestLoad_CategoryOverride(t *testing.T) {
	l := New(testRegistry(t))

	doc, err := l.Load(Input{
		Source:  "misc-note.md",
		Content: []byte("---\ntitle: Stable Callbacks\ncategory: advanced\nimpact: LOW\n---\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, doc.SectionID)
	assert.Equal(t, "advanced", doc.Category)

	_, err = l.Load(Input{
		Source:  "async-note.md",
		Content: []byte("---\ntitle: Orphan\ncategory: styling\n---\n"),
	})
	var de *rules.DocumentError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, rules.KindUnknownSection, de.Kind)
	assert.Equal(t, "styling", de.Fragment)
}

func TestLoad_Aliases(t *testing.T) {
	n, err := rules.NewImpactNormalizer(map[string]string{"urgent": "CRITICAL"})
	require.NoError(t, err)
	l := New(testRegistry(t), WithNormalizer(n), WithListDelimiter(";"))

	doc, err := l.Load(Input{
		Source:  "async-defer-await.md",
		Content: []byte("---\ntitle: Defer Await\nimpact: Urgent\ntags: a; b\n---\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, rules.ImpactCritical, doc.Impact)
	assert.Equal(t, "Urgent", doc.RawImpact)
	assert.Equal(t, []string{"a", "b"}, doc.Tags)
}

func TestLoad_HTML(t *testing.T) {
	l := New(testRegistry(t))

	html := `<html><head>
<meta name="title" content="Dynamic Imports for Heavy Components">
<meta name="impact" content="MEDIUM-HIGH">
</head><body><main><p>Load lazily.</p></main></body></html>`

	doc, err := l.Load(Input{Source: "bundle-dynamic-imports.html", Content: []byte(html)})
	require.NoError(t, err)
	assert.Equal(t, "Dynamic Imports for Heavy Components", doc.Title)
	assert.Equal(t, rules.ImpactMediumHigh, doc.Impact)
	assert.Equal(t, 2, doc.SectionID)
	assert.Contains(t, doc.Body, "Load lazily.")
}

func TestLoad_Errors(t *testing.T) {
	l := New(testRegistry(t))

	tests := []struct {
		name     string
		source   string
		content  string
		kind     rules.ErrorKind
		fragment string
	}{
		{
			name:     "invalid impact",
			source:   "async-parallel.md",
			content:  "---\ntitle: Parallel\nimpact: Super Critical\n---\nbody\n",
			kind:     rules.KindInvalidImpact,
			fragment: "Super Critical",
		},
		{
			name:     "unknown section",
			source:   "mystery-thing.md",
			content:  "---\ntitle: Mystery\nimpact: LOW\n---\n",
			kind:     rules.KindUnknownSection,
			fragment: "mystery-thing",
		},
		{
			name:    "missing title",
			source:  "async-untitled.md",
			content: "---\nimpact: HIGH\n---\nno heading here\n",
			kind:    rules.KindMissingTitle,
		},
		{
			name:    "unterminated metadata",
			source:  "async-broken.md",
			content: "---\ntitle: Broken\n",
			kind:    rules.KindParse,
		},
		{
			name:     "non key-value line",
			source:   "async-broken.md",
			content:  "---\ntitle: Broken\njust words\n---\n",
			kind:     rules.KindParse,
			fragment: "just words",
		},
		{
			name:     "unsupported extension",
			source:   "async-notes.txt",
			content:  "# Notes\n",
			kind:     rules.KindParse,
			fragment: ".txt",
		},
		{
			name:     "bad tag list",
			source:   "async-tags.md",
			content:  "---\ntitle: Tags\ntags: [a, [b]\n---\n",
			kind:     rules.KindParse,
			fragment: "[a, [b]",
		},
		{
			name:     "title checked before section",
			source:   "mystery-thing.md",
			content:  "no title at all\n",
			kind:     rules.KindMissingTitle,
			fragment: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := l.Load(Input{Source: tt.source, Content: []byte(tt.content)})
			require.Error(t, err)
			assert.Nil(t, doc)

			var de *rules.DocumentError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.kind, de.Kind)
			assert.Equal(t, tt.source, de.Source)
			assert.Equal(t, tt.fragment, de.Fragment)
			assert.True(t, errors.Is(err, tt.kind.Sentinel()))
		})
	}
}

func TestLoad_ImpactIsNeverCoerced(t *testing.T) {
	l := New(testRegistry(t))

	for _, raw := range []string{"HIGHEST", "crit", "medium-ish", "5"} {
		_, err := l.Load(Input{
			Source:  "async-x.md",
			Content: []byte("---\ntitle: X\nimpact: " + raw + "\n---\n"),
		})
		assert.True(t, errors.Is(err, rules.ErrInvalidImpact), "impact %q", raw)
	}
}
