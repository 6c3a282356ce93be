package dogfood

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

type ruleFunc func(rs *membrane.RuleSet, field membrane.Field, target object.Value, args []object.Value) error

// rulesObject exposes inner's rule mutators as methods taking
// (fieldName, target, ...)
func rulesObject(inner *membrane.Membrane) *object.Ordinary {
	obj := object.NewOrdinaryWithClass(nil, "ModifyRulesAPI")

	define := func(name string, arity int, apply ruleFunc) {
		obj.Put(name, object.NewFunction(name, arity, func(_ object.Value, args []object.Value) (object.Value, error) {
			field, ok := arg(args, 0).(string)
			if !ok {
				return nil, object.TypeError("%s: field name must be a string", name)
			}
			if err := apply(inner.ModifyRules(), membrane.Field(field), arg(args, 1), args); err != nil {
				return nil, object.Throw(object.NewError("Error", err.Error()))
			}
			return true, nil
		}))
	}

	define("storeUnknownAsLocal", 2, func(rs *membrane.RuleSet, field membrane.Field, target object.Value, _ []object.Value) error {
		return rs.StoreUnknownAsLocal(field, target)
	})
	define("requireLocalDelete", 2, func(rs *membrane.RuleSet, field membrane.Field, target object.Value, _ []object.Value) error {
		return rs.RequireLocalDelete(field, target)
	})
	define("filterOwnKeys", 3, func(rs *membrane.RuleSet, field membrane.Field, target object.Value, args []object.Value) error {
		fn, ok := arg(args, 2).(object.Callable)
		if !ok {
			return object.TypeError("filterOwnKeys: filter must be callable")
		}
		return rs.FilterOwnKeys(field, target, scriptFilter(fn))
	})
	return obj
}

// scriptFilter adapts a callable predicate. A key passes when the predicate
// returns true; a throwing predicate hides the key.
func scriptFilter(fn object.Callable) membrane.KeyFilter {
	return func(key object.Key) bool {
		var k object.Value = key.Name()
		if key.IsSymbol() {
			k = key.Symbol()
		}
		v, err := fn.Call(nil, []object.Value{k})
		return err == nil && v == true
	}
}

// loggerObject exposes a zap logger with debug/info/warn/error methods taking
// (message, fields?)
func loggerObject(logger *zap.Logger) *object.Ordinary {
	obj := object.NewOrdinaryWithClass(nil, "Logger")

	levels := []struct {
		name string
		log  func(string, ...zap.Field)
	}{
		{"debug", logger.Debug},
		{"info", logger.Info},
		{"warn", logger.Warn},
		{"error", logger.Error},
	}
	for _, level := range levels {
		log := level.log
		obj.Put(level.name, object.NewFunction(level.name, 2, func(_ object.Value, args []object.Value) (object.Value, error) {
			msg, _ := arg(args, 0).(string)
			fields, err := logFields(arg(args, 1))
			if err != nil {
				return nil, err
			}
			log(msg, fields...)
			return nil, nil
		}))
	}
	return obj
}

// logFields turns the primitive own properties of v into zap fields
func logFields(v object.Value) ([]zap.Field, error) {
	obj, ok := v.(object.Object)
	if !ok {
		return nil, nil
	}
	keys, err := obj.OwnKeys()
	if err != nil {
		return nil, err
	}

	fields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		if key.IsSymbol() {
			continue
		}
		val, err := obj.Get(key, nil)
		if err != nil {
			return nil, err
		}
		if object.IsPrimitive(val) {
			fields = append(fields, zap.Any(key.Name(), val))
		}
	}
	return fields, nil
}
