package knowledge

import (
	"fmt"
	"strings"
)

// Policy says how to behave once a context is known.
type Policy struct {
	Name            string `yaml:"-" json:"name"`
	Speak           bool   `yaml:"speak" json:"speak"`
	Interrupt       bool   `yaml:"interrupt" json:"interrupt"`
	CooldownSeconds int    `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	Tone            string `yaml:"tone,omitempty" json:"tone,omitempty"`
}

// DefaultPolicy is used for behaviors nobody defined.
func DefaultPolicy() Policy {
	return Policy{
		Name:            "default",
		Speak:           true,
		CooldownSeconds: 300,
		Tone:            "neutral",
	}
}

// PolicyProvider looks up behavior policies by name. Unknown names yield
// DefaultPolicy; lookups never fail.
type PolicyProvider interface {
	Policy(name string) Policy
}

// Requirement says whether a task needs the AI provider.
type Requirement string

const (
	RequireAlways    Requirement = "always"
	RequireNever     Requirement = "never"
	RequireIfUnknown Requirement = "if_unknown"
)

// UnmarshalText accepts the three names and the booleans true/false.
func (r *Requirement) UnmarshalText(b []byte) error {
	switch s := strings.ToLower(strings.TrimSpace(string(b))); s {
	case "always", "true":
		*r = RequireAlways
	case "never", "false":
		*r = RequireNever
	case "if_unknown":
		*r = RequireIfUnknown
	default:
		return fmt.Errorf("knowledge: invalid requires_ai %q", s)
	}
	return nil
}

// Capability routes one task.
type Capability struct {
	RequiresAI  Requirement `yaml:"requires_ai" json:"requires_ai"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
}

// CapabilityProvider looks up capability routing by task name.
type CapabilityProvider interface {
	Capability(task string) (Capability, bool)
}
