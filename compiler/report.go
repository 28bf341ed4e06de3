package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/alexraputa/agent-skills-sub001/rules"
)

// Issue is one failing document in the run report.
type Issue struct {
	Source   string          `json:"source"`
	Kind     rules.ErrorKind `json:"kind"`
	Fragment string          `json:"fragment,omitempty"`
	Line     int             `json:"line,omitempty"`
	Message  string          `json:"message"`
}

// issueFromError converts a per-document error into a report issue.
func issueFromError(source string, err error) Issue {
	issue := Issue{Source: source, Kind: rules.KindParse, Message: err.Error()}
	var de *rules.DocumentError
	if errors.As(err, &de) {
		issue.Kind = de.Kind
		issue.Fragment = de.Fragment
		issue.Line = de.Line
		if de.Err != nil {
			issue.Message = de.Err.Error()
		} else {
			issue.Message = string(de.Kind)
		}
	}
	return issue
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s: %s", i.Source, i.Kind)
	if i.Line > 0 {
		s += fmt.Sprintf(" at line %d", i.Line)
	}
	s += ": " + i.Message
	if i.Fragment != "" {
		s += fmt.Sprintf(" (fragment %q)", i.Fragment)
	}
	return s
}

// ReportFormat selects how WriteReport prints issues and conflicts.
type ReportFormat string

// Report formats.
const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
)

type reportPayload struct {
	RunID     string           `json:"runId"`
	State     State            `json:"state"`
	Documents int              `json:"documents"`
	Rules     int              `json:"rules"`
	Issues    []Issue          `json:"issues"`
	Conflicts []rules.Conflict `json:"conflicts"`
}

// WriteReport prints the issues and conflicts of a finished run.
func WriteReport(w io.Writer, res *Result, format ReportFormat) error {
	var conflicts []rules.Conflict
	rulesCount := 0
	if res.Manifest != nil {
		conflicts = res.Manifest.Conflicts
		rulesCount = res.Manifest.RuleCount()
	}

	switch format {
	case ReportJSON:
		payload := reportPayload{
			RunID:     res.RunID,
			State:     res.State,
			Documents: res.Documents,
			Rules:     rulesCount,
			Issues:    append([]Issue{}, res.Issues...),
			Conflicts: append([]rules.Conflict{}, conflicts...),
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case ReportText, "":
		for _, issue := range res.Issues {
			if _, err := fmt.Fprintln(w, issue.String()); err != nil {
				return err
			}
		}
		for _, c := range conflicts {
			if _, err := fmt.Fprintf(w, "conflict %q (%s): %d documents, preferred %s\n",
				c.Key, c.Kind, len(c.Members), c.Preferred); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d documents, %d rules, %d errors, %d conflicts\n",
			res.Documents, rulesCount, len(res.Issues), len(conflicts))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
