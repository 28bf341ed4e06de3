package rules

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Impact is a canonical severity tier.
type Impact string

// Canonical impact tiers, from most to least severe.
const (
	ImpactCritical   Impact = "CRITICAL"
	ImpactHigh       Impact = "HIGH"
	ImpactMediumHigh Impact = "MEDIUM-HIGH"
	ImpactMedium     Impact = "MEDIUM"
	ImpactLowMedium  Impact = "LOW-MEDIUM"
	ImpactLow        Impact = "LOW"
)

// ImpactTiers lists every canonical tier ordered by rank.
var ImpactTiers = []Impact{
	ImpactCritical,
	ImpactHigh,
	ImpactMediumHigh,
	ImpactMedium,
	ImpactLowMedium,
	ImpactLow,
}

var impactRank = func() map[Impact]int {
	m := make(map[Impact]int, len(ImpactTiers))
	for i, tier := range ImpactTiers {
		m[tier] = i
	}
	return m
}()

// builtinImpactAliases maps canonicalized synonyms to tiers.
var builtinImpactAliases = map[string]Impact{
	"MED":         ImpactMedium,
	"MODERATE":    ImpactMedium,
	"MEDIUM-LOW":  ImpactLowMedium,
	"HIGH-MEDIUM": ImpactMediumHigh,
}

// Rank returns the tier's position; 0 is the most severe. Unknown tiers rank last.
func (i Impact) Rank() int {
	if r, ok := impactRank[i]; ok {
		return r
	}
	return len(ImpactTiers)
}

// Valid reports whether i is a canonical tier.
func (i Impact) Valid() bool {
	_, ok := impactRank[i]
	return ok
}

func (i Impact) String() string {
	return string(i)
}

// CanonicalToken upper-cases s and collapses runs of whitespace, hyphens and
// underscores into a single hyphen, so "Medium high", "medium_high" and
// "MEDIUM-HIGH" all yield "MEDIUM-HIGH".
func CanonicalToken(s string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			pendingSep = true
			continue
		}
		if pendingSep && sb.Len() > 0 {
			sb.WriteByte('-')
		}
		pendingSep = false
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}

// ImpactNormalizer maps declared impact strings to canonical tiers. It is
// immutable after construction and safe for concurrent use.
type ImpactNormalizer struct {
	aliases map[string]Impact
}

// NewImpactNormalizer builds a normalizer from the built-in synonyms plus the
// given extra aliases. Every alias must target a canonical tier.
func NewImpactNormalizer(extra map[string]string) (*ImpactNormalizer, error) {
	aliases := make(map[string]Impact, len(builtinImpactAliases)+len(extra))
	for k, v := range builtinImpactAliases {
		aliases[k] = v
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		alias := CanonicalToken(k)
		target := Impact(CanonicalToken(extra[k]))
		if alias == "" {
			return nil, fmt.Errorf("impact alias %q: empty alias", k)
		}
		if !target.Valid() {
			return nil, fmt.Errorf("impact alias %q: target %q is not a canonical tier", k, extra[k])
		}
		if Impact(alias).Valid() && Impact(alias) != target {
			return nil, fmt.Errorf("impact alias %q: cannot remap canonical tier", k)
		}
		aliases[alias] = target
	}
	return &ImpactNormalizer{aliases: aliases}, nil
}

// DefaultImpactNormalizer returns a normalizer with only the built-in synonyms.
func DefaultImpactNormalizer() *ImpactNormalizer {
	n, _ := NewImpactNormalizer(nil)
	return n
}

// Normalize returns the canonical tier for raw. Unrecognized values are
// rejected, never coerced to a nearby tier.
func (n *ImpactNormalizer) Normalize(raw string) (Impact, bool) {
	token := CanonicalToken(raw)
	if token == "" {
		return "", false
	}
	if tier := Impact(token); tier.Valid() {
		return tier, true
	}
	if n != nil {
		if tier, ok := n.aliases[token]; ok {
			return tier, true
		}
	}
	return "", false
}
