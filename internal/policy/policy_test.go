package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"whitelist", Rule{Name: "r", Class: "Config", Action: ActionWhitelist, Allow: []string{"a"}}, false},
		{"deny by function", Rule{Name: "r", Function: "exec*", Action: ActionDeny}, false},
		{"local", Rule{Name: "r", Class: "*", Action: ActionLocal}, false},
		{"matches nothing", Rule{Name: "r", Action: ActionDeny}, true},
		{"unknown action", Rule{Name: "r", Class: "A", Action: "expose"}, true},
		{"allow without whitelist", Rule{Name: "r", Class: "A", Action: ActionDeny, Allow: []string{"x"}}, true},
		{"bad glob", Rule{Name: "r", Class: "[A", Action: ActionDeny}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Version: 1, Fields: map[string]FieldPolicy{
				"sandbox": {Rules: []Rule{tt.rule}},
			}}
			err := doc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("future version", func(t *testing.T) {
		assert.ErrorIs(t, (&Document{Version: 2}).Validate(), ErrInvalidPolicy)
	})
}

func TestRuleMatches(t *testing.T) {
	config := object.NewOrdinaryWithClass(nil, "ConfigStore")
	plain := object.NewOrdinary(nil)
	exec := object.NewFunction("execCommand", 1, func(object.Value, []object.Value) (object.Value, error) {
		return nil, nil
	})

	tests := []struct {
		name   string
		rule   Rule
		target object.Object
		want   bool
	}{
		{"exact class", Rule{Class: "ConfigStore"}, config, true},
		{"class glob", Rule{Class: "Config*"}, config, true},
		{"class mismatch", Rule{Class: "Secret"}, config, false},
		{"default class", Rule{Class: "Object"}, plain, true},
		{"function glob", Rule{Function: "exec*"}, exec, true},
		{"function on non-function", Rule{Function: "*"}, plain, false},
		{"class and function both required", Rule{Class: "Secret", Function: "exec*"}, exec, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(tt.target))
		})
	}
}

func TestMerge(t *testing.T) {
	base := &Document{Version: 1, Fields: map[string]FieldPolicy{
		"sandbox": {Rules: []Rule{{Name: "a", Class: "A", Action: ActionDeny}}},
	}}
	base.Merge(&Document{Version: 1, Fields: map[string]FieldPolicy{
		"sandbox": {Freeze: true, Rules: []Rule{{Name: "b", Class: "B", Action: ActionDeny}}},
		"plugin":  {Rules: []Rule{{Name: "c", Class: "C", Action: ActionLocal}}},
	}})

	require.Len(t, base.Fields, 2)
	sandbox := base.Fields["sandbox"]
	assert.True(t, sandbox.Freeze)
	require.Len(t, sandbox.Rules, 2)
	assert.Equal(t, "a", sandbox.Rules[0].Name)
	assert.Equal(t, "b", sandbox.Rules[1].Name)
	assert.Equal(t, []string{"plugin", "sandbox"}, base.FieldNames())
}
