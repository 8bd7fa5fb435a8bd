// Package access maps caller identity onto named visibility tiers and
// filters the tool catalog accordingly.
package access

import (
	"fmt"
	"strings"
)

// TierAnonymous is the mandatory lowest-privilege tier; sessions with no
// resolved role flags land here.
const TierAnonymous = "anonymous"

// TierAdmin, when configured, is the highest tier and is granted to callers
// whose identity reports elevated privilege.
const TierAdmin = "admin"

// Tier is one named visibility class with its ordered tool allow-list.
// Allow-list entries may name tools absent from the live catalog; those are
// silently ignored during filtering.
type Tier struct {
	Name  string
	Allow []string
}

// Tiers holds the configured tier set. Immutable after construction.
type Tiers struct {
	byName  map[string]Tier
	ordered []string
	middle  string
}

// NewTiers validates and indexes the configured tiers. The anonymous tier is
// mandatory. The middle tier is the first configured tier that is neither
// anonymous nor admin.
func NewTiers(tiers []Tier) (*Tiers, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no access tiers configured")
	}

	byName := make(map[string]Tier, len(tiers))
	ordered := make([]string, 0, len(tiers))
	middle := ""
	for _, tier := range tiers {
		name := strings.TrimSpace(tier.Name)
		if name == "" {
			return nil, fmt.Errorf("access tier with empty name")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate access tier %q", name)
		}
		tier.Name = name
		byName[name] = tier
		ordered = append(ordered, name)
		if middle == "" && name != TierAnonymous && name != TierAdmin {
			middle = name
		}
	}

	if _, ok := byName[TierAnonymous]; !ok {
		return nil, fmt.Errorf("access tier %q must be configured", TierAnonymous)
	}

	return &Tiers{byName: byName, ordered: ordered, middle: middle}, nil
}

// Names returns tier names in configuration order.
func (t *Tiers) Names() []string {
	out := make([]string, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Lookup returns a configured tier by name.
func (t *Tiers) Lookup(name string) (Tier, bool) {
	tier, ok := t.byName[strings.TrimSpace(name)]
	return tier, ok
}

// Resolve maps a caller onto a tier. An explicit override naming a
// configured tier wins unconditionally regardless of role flags: it is an
// operator escape hatch, not a security boundary. Otherwise elevated
// privilege maps to the highest configured tier, any other authenticated
// caller to the middle tier when one exists, and everything else to
// anonymous.
func (t *Tiers) Resolve(authenticated, elevated bool, override string) Tier {
	if tier, ok := t.tierForOverride(override); ok {
		return tier
	}
	return t.tierForFlags(authenticated, elevated)
}

// tierForOverride is the first, independently testable step of the fallback
// chain: an override only applies when it names a configured tier.
func (t *Tiers) tierForOverride(override string) (Tier, bool) {
	trimmed := strings.TrimSpace(override)
	if trimmed == "" {
		return Tier{}, false
	}
	tier, ok := t.byName[trimmed]
	return tier, ok
}

// tierForFlags is the flag-based step of the fallback chain.
func (t *Tiers) tierForFlags(authenticated, elevated bool) Tier {
	if !authenticated {
		return t.byName[TierAnonymous]
	}
	if elevated {
		if tier, ok := t.byName[TierAdmin]; ok {
			return tier
		}
	}
	if t.middle != "" {
		return t.byName[t.middle]
	}
	return t.byName[TierAnonymous]
}
