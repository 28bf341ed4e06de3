// Package rules provides the data model shared by the rule corpus compiler:
// sections, rule documents, conflicts and the error taxonomy.
package rules

// Section is a named, ordered grouping of rules declared in the section
// definitions document. Sections are immutable once the registry is built.
type Section struct {
	// ID is the declared sequence number and defines display order.
	ID int `json:"id" yaml:"id"`

	// Title is the human readable section name.
	Title string `json:"title" yaml:"title"`

	// Impact is the section's canonical impact tier.
	Impact Impact `json:"impact" yaml:"impact"`

	// Description is free text taken from the Description line.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Prefixes lists the file-name prefixes owned by this section, in declared order.
	Prefixes []string `json:"prefixes" yaml:"prefixes"`
}

// HasPrefix reports whether the section owns the given prefix.
func (s *Section) HasPrefix(prefix string) bool {
	for _, p := range s.Prefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// RuleDocument is a parsed and resolved rule. It is created by the loader and
// never mutated afterwards.
type RuleDocument struct {
	// Source identifies the document, usually its path relative to the rules directory.
	Source string `json:"source"`

	// Stem is the lower-cased file name without extension.
	Stem string `json:"stem"`

	// Title is the declared or inferred rule title.
	Title string `json:"title"`

	// RawImpact is the impact string exactly as declared (empty when inherited).
	RawImpact string `json:"rawImpact,omitempty"`

	// Impact is the normalized canonical tier.
	Impact Impact `json:"impact"`

	// ImpactInherited is set when the document declared no impact and took its section's tier.
	ImpactInherited bool `json:"impactInherited,omitempty"`

	// ImpactDescription is the optional free-text impact summary.
	ImpactDescription string `json:"impactDescription,omitempty"`

	// Tags is the sorted, de-duplicated tag set.
	Tags []string `json:"tags,omitempty"`

	// Category is the declared category override, if any.
	Category string `json:"category,omitempty"`

	// Body is the document content after the metadata block. Opaque to the compiler.
	Body string `json:"-"`

	// ContentHash is a SHA-256 over the body, used for conflict detection.
	ContentHash string `json:"contentHash"`

	// SectionID is the ID of the resolved section.
	SectionID int `json:"sectionId"`
}

// BodyLength returns the length of the body in bytes.
func (r *RuleDocument) BodyLength() int {
	return len(r.Body)
}

// ConflictKind classifies a group of documents sharing an identity key.
type ConflictKind string

const (
	// ConflictDivergent marks members that differ in body or metadata.
	ConflictDivergent ConflictKind = "divergent"
	// ConflictDuplicate marks members that are exact copies of each other.
	ConflictDuplicate ConflictKind = "duplicate"
)

// Conflict records two or more documents sharing a normalized title.
// A conflict is a finding, not an error, and always surfaces in the manifest.
type Conflict struct {
	// Key is the case-folded, whitespace-collapsed title.
	Key string `json:"key" yaml:"key"`

	// Kind tells whether the members diverge or are plain copies.
	Kind ConflictKind `json:"kind" yaml:"kind"`

	// Members lists the source identifiers of every member, sorted.
	Members []string `json:"members" yaml:"members"`

	// Preferred is the source identifier of the representative member.
	Preferred string `json:"preferred" yaml:"preferred"`

	// Differences names the fields that differ between members.
	Differences []string `json:"differences,omitempty" yaml:"differences,omitempty"`
}
