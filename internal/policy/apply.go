package policy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// callableMeta are exposed on every whitelisted callable so that calls and
// instanceof keep working through the proxy
var callableMeta = []string{"prototype", "length", "name"}

// Installed reports what Apply registered
type Installed struct {
	Listeners map[membrane.Field]membrane.ListenerID
}

// Apply installs one proxy listener per field of doc. Fields marked Freeze
// refuse further listener changes afterwards.
func Apply(m *membrane.Membrane, doc *Document) (*Installed, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	installed := &Installed{Listeners: make(map[membrane.Field]membrane.ListenerID)}
	for _, name := range doc.FieldNames() {
		fp := doc.Fields[name]
		field := membrane.Field(name)

		h, err := m.GetHandlerByField(field, true)
		if err != nil {
			return nil, fmt.Errorf("policy field %q: %w", name, err)
		}

		if len(fp.Rules) > 0 {
			lid, err := h.AddProxyListener(listenerFor(m.Logger(), fp.Rules))
			if err != nil {
				return nil, fmt.Errorf("policy field %q: %w", name, err)
			}
			installed.Listeners[field] = lid
		}
		if fp.Freeze {
			h.FreezeListeners()
		}

		m.Logger().Info("Policy applied",
			zap.String("field", name),
			zap.Int("rules", len(fp.Rules)),
			zap.Bool("frozen", fp.Freeze))
	}
	return installed, nil
}

func listenerFor(logger *zap.Logger, rules []Rule) membrane.ProxyListener {
	return func(meta *membrane.ProxyMeta) {
		target := meta.Target()
		for _, rule := range rules {
			if !rule.Matches(target) {
				continue
			}

			if err := enforce(meta, rule); err != nil {
				meta.ThrowException(err)
				return
			}
			logger.Debug("Policy rule matched",
				zap.String("rule", rule.Name),
				zap.String("field", string(meta.Field())),
				zap.String("action", string(rule.Action)))

			if !rule.Continue {
				meta.StopIteration()
				return
			}
		}
	}
}

func enforce(meta *membrane.ProxyMeta, rule Rule) error {
	target := meta.Target()
	field := meta.Field()
	rs := meta.Rules()

	switch rule.Action {
	case ActionDeny:
		reason := rule.Reason
		if reason == "" {
			reason = fmt.Sprintf("denied by policy rule %q", rule.Name)
		}
		return &membrane.LeakPreventionError{Type: object.ClassOf(target), Reason: reason}

	case ActionLocal:
		if err := rs.StoreUnknownAsLocal(field, target); err != nil {
			return err
		}
		return rs.RequireLocalDelete(field, target)

	case ActionWhitelist:
		if err := rs.StoreUnknownAsLocal(field, target); err != nil {
			return err
		}
		if err := rs.RequireLocalDelete(field, target); err != nil {
			return err
		}
		allow := rule.Allow
		if _, ok := target.(object.Callable); ok {
			allow = append(append([]string(nil), allow...), callableMeta...)
		}
		return rs.FilterOwnKeys(field, target, membrane.AllowKeys(allow...))
	}
	return fmt.Errorf("%w: unknown action %q", ErrInvalidPolicy, rule.Action)
}
