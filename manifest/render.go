package manifest

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/alexraputa/agent-skills-sub001/rules/conflict"
)

// RenderTable renders the manifest as bordered text tables: one row per rule,
// followed by a conflicts table when any were found.
func RenderTable(m *Manifest) string {
	rules := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SECTION", "IMPACT", "TITLE", "TAGS", "SOURCE", "STATUS")
	for _, s := range m.Sections {
		section := fmt.Sprintf("%d. %s", s.ID, s.Title)
		if len(s.Rules) == 0 {
			rules.Row(section, string(s.Impact), "-", "", "", "")
			continue
		}
		for _, r := range s.Rules {
			rules.Row(section, string(r.Impact), r.Title, strings.Join(r.Tags, ", "), r.Source, string(r.Status))
		}
	}

	var sb strings.Builder
	sb.WriteString(rules.String())
	sb.WriteString("\n")

	if len(m.Conflicts) > 0 {
		conflicts := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("CONFLICT", "KIND", "MEMBERS", "PREFERRED")
		for _, c := range m.Conflicts {
			conflicts.Row(c.Key, string(c.Kind), strings.Join(c.Members, "\n"), c.Preferred)
		}
		sb.WriteString(conflicts.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderMarkdown renders a single guide document: each section in order with
// its rules and their bodies. Superseded rules are kept and marked.
func RenderMarkdown(m *Manifest) string {
	var sb strings.Builder
	sb.WriteString("# Rules\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, s := range m.Sections {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", s.ID, s.Title, s.Impact)
		for i, r := range s.Rules {
			fmt.Fprintf(&sb, "   %d.%d. %s\n", s.ID, i+1, r.Title)
		}
	}
	sb.WriteString("\n")

	for _, s := range m.Sections {
		fmt.Fprintf(&sb, "## %d. %s\n\n", s.ID, s.Title)
		fmt.Fprintf(&sb, "**Impact:** %s\n", s.Impact)
		if s.Description != "" {
			fmt.Fprintf(&sb, "**Description:** %s\n", s.Description)
		}
		sb.WriteString("\n")

		for i, r := range s.Rules {
			fmt.Fprintf(&sb, "### %d.%d. %s\n\n", s.ID, i+1, r.Title)
			impact := string(r.Impact)
			if r.ImpactDescription != "" {
				impact += " (" + r.ImpactDescription + ")"
			}
			fmt.Fprintf(&sb, "**Impact:** %s\n", impact)
			if len(r.Tags) > 0 {
				fmt.Fprintf(&sb, "**Tags:** %s\n", strings.Join(r.Tags, ", "))
			}
			fmt.Fprintf(&sb, "**Source:** %s\n", r.Source)
			if r.Status == conflict.StatusSuperseded {
				fmt.Fprintf(&sb, "\n> Superseded by %s: both documents share this title.\n", r.SupersededBy)
			}
			sb.WriteString("\n")
			if body := strings.TrimSpace(stripLeadingHeading(r.Body())); body != "" {
				sb.WriteString(body)
				sb.WriteString("\n\n")
			}
		}
	}

	if len(m.Conflicts) > 0 {
		sb.WriteString("## Conflicts\n\n")
		for _, c := range m.Conflicts {
			fmt.Fprintf(&sb, "- **%s** (%s): %s; preferred %s\n",
				c.Key, c.Kind, strings.Join(c.Members, ", "), c.Preferred)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// stripLeadingHeading drops a top-level heading that opens the body, since
// the rendered document already prints the rule title.
func stripLeadingHeading(body string) string {
	trimmed := strings.TrimLeft(body, "\n")
	if !strings.HasPrefix(trimmed, "# ") {
		return body
	}
	_, rest, _ := strings.Cut(trimmed, "\n")
	return rest
}
