package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

var (
	ErrInvalidPolicy = errors.New("invalid exposure policy")
	ErrUnknownFormat = errors.New("unknown policy format")
)

// Action is what a rule does with a matching target
type Action string

const (
	// ActionWhitelist exposes only the listed own keys; writes and deletes of
	// anything else stay local to the field
	ActionWhitelist Action = "whitelist"
	// ActionLocal keeps writes of unknown keys and deletes local to the field
	ActionLocal Action = "local"
	// ActionDeny refuses to expose the target at all
	ActionDeny Action = "deny"
)

// Document is a complete exposure policy, keyed by field name
type Document struct {
	Version int                    `yaml:"version" json:"version" toml:"version"`
	Fields  map[string]FieldPolicy `yaml:"fields" json:"fields" toml:"fields"`
}

// FieldPolicy lists the rules of one field in evaluation order
type FieldPolicy struct {
	Freeze bool   `yaml:"freeze" json:"freeze" toml:"freeze"`
	Rules  []Rule `yaml:"rules" json:"rules" toml:"rules"`
}

// Rule matches targets by class tag and/or function name. A rule with both
// set requires both to match.
type Rule struct {
	Name     string   `yaml:"name" json:"name" toml:"name"`
	Class    string   `yaml:"class,omitempty" json:"class,omitempty" toml:"class,omitempty"`
	Function string   `yaml:"function,omitempty" json:"function,omitempty" toml:"function,omitempty"`
	Action   Action   `yaml:"action" json:"action" toml:"action"`
	Allow    []string `yaml:"allow,omitempty" json:"allow,omitempty" toml:"allow,omitempty"`
	Reason   string   `yaml:"reason,omitempty" json:"reason,omitempty" toml:"reason,omitempty"`

	// Continue lets later rules and listeners see the target too
	Continue bool `yaml:"continue,omitempty" json:"continue,omitempty" toml:"continue,omitempty"`
}

// Validate checks the document for structural errors
func (d *Document) Validate() error {
	if d.Version > 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPolicy, d.Version)
	}
	for _, field := range d.FieldNames() {
		for i, rule := range d.Fields[field].Rules {
			if err := rule.validate(); err != nil {
				return fmt.Errorf("%w: field %q rule %d (%s): %v", ErrInvalidPolicy, field, i, rule.Name, err)
			}
		}
	}
	return nil
}

// FieldNames returns the document's fields in sorted order
func (d *Document) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge folds other into d. Rules of a field present in both are appended.
func (d *Document) Merge(other *Document) {
	if d.Fields == nil {
		d.Fields = make(map[string]FieldPolicy)
	}
	if other.Version > d.Version {
		d.Version = other.Version
	}
	for name, fp := range other.Fields {
		current := d.Fields[name]
		current.Freeze = current.Freeze || fp.Freeze
		current.Rules = append(current.Rules, fp.Rules...)
		d.Fields[name] = current
	}
}

func (r Rule) validate() error {
	if r.Class == "" && r.Function == "" {
		return errors.New("rule matches nothing: set class or function")
	}
	if r.Class != "" && !doublestar.ValidatePattern(r.Class) {
		return fmt.Errorf("bad class pattern %q", r.Class)
	}
	if r.Function != "" && !doublestar.ValidatePattern(r.Function) {
		return fmt.Errorf("bad function pattern %q", r.Function)
	}

	switch r.Action {
	case ActionWhitelist, ActionLocal, ActionDeny:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.Action != ActionWhitelist && len(r.Allow) > 0 {
		return fmt.Errorf("allow is only valid with %q", ActionWhitelist)
	}
	return nil
}

// Matches reports whether target falls under the rule
func (r Rule) Matches(target object.Object) bool {
	if r.Class != "" {
		if ok, _ := doublestar.Match(r.Class, object.ClassOf(target)); !ok {
			return false
		}
	}
	if r.Function != "" {
		name := object.FunctionName(target)
		if name == "" {
			return false
		}
		if ok, _ := doublestar.Match(r.Function, name); !ok {
			return false
		}
	}
	return true
}
