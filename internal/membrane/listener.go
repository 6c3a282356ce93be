package membrane

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
)

// ProxyListener observes the creation of a proxy before it is handed out
type ProxyListener func(meta *ProxyMeta)

// ListenerID identifies a registered listener
type ListenerID string

type listenerEntry struct {
	id       ListenerID
	listener ProxyListener
}

// ProxyMeta describes a proxy under construction. Listeners may apply rules
// to it, replace it, stop the remaining listeners or abort the conversion.
type ProxyMeta struct {
	target  object.Object
	field   Field
	proxy   object.Value
	handler *GraphHandler

	stopped bool
	err     error
}

// Target returns the original being converted
func (pm *ProxyMeta) Target() object.Object {
	return pm.target
}

// Field returns the field the proxy is created for
func (pm *ProxyMeta) Field() Field {
	return pm.field
}

// Proxy returns the representation that will be handed out
func (pm *ProxyMeta) Proxy() object.Value {
	return pm.proxy
}

// SetProxy substitutes the representation. The substitute must be an object
// the membrane does not track yet.
func (pm *ProxyMeta) SetProxy(v object.Value) {
	pm.proxy = v
}

// StopIteration skips the listeners registered after the current one
func (pm *ProxyMeta) StopIteration() {
	pm.stopped = true
}

// Stopped reports whether iteration has been stopped
func (pm *ProxyMeta) Stopped() bool {
	return pm.stopped
}

// ThrowException aborts the conversion with err
func (pm *ProxyMeta) ThrowException(err error) {
	if err == nil {
		err = ErrListenerAborted
	}
	pm.err = err
	pm.stopped = true
}

// Rules returns the membrane's rule mutators, for use on Target in Field
func (pm *ProxyMeta) Rules() *RuleSet {
	return pm.handler.membrane.rules
}

// AddProxyListener registers listener to run, in registration order, for
// every proxy this field creates
func (h *GraphHandler) AddProxyListener(listener ProxyListener) (ListenerID, error) {
	if listener == nil {
		return "", fmt.Errorf("%w: nil listener", ErrInvariantViolation)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frozen {
		return "", ErrListenersFrozen
	}
	lid := ListenerID(uuid.NewString())
	h.listeners = append(h.listeners, listenerEntry{id: lid, listener: listener})
	return lid, nil
}

// RemoveProxyListener unregisters a listener
func (h *GraphHandler) RemoveProxyListener(lid ListenerID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.frozen {
		return ErrListenersFrozen
	}
	for i, entry := range h.listeners {
		if entry.id == lid {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrListenerNotFound, lid)
}

// FreezeListeners makes the listener list immutable
func (h *GraphHandler) FreezeListeners() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frozen = true
}

// ListenersFrozen reports whether the listener list is immutable
func (h *GraphHandler) ListenersFrozen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frozen
}

// runListeners invokes a snapshot of the listeners. A panicking listener
// aborts the conversion like ThrowException.
func (h *GraphHandler) runListeners(meta *ProxyMeta) error {
	h.mu.Lock()
	listeners := append([]listenerEntry(nil), h.listeners...)
	h.mu.Unlock()

	for _, entry := range listeners {
		if err := h.invoke(entry, meta); err != nil {
			return err
		}
		if meta.err != nil {
			return meta.err
		}
		if meta.stopped {
			break
		}
	}
	return nil
}

func (h *GraphHandler) invoke(entry listenerEntry, meta *ProxyMeta) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.membrane.logger.Error("Proxy listener panicked",
				zap.String("field", string(h.field)),
				zap.String("listener", string(entry.id)),
				zap.Any("panic", r))
			err = fmt.Errorf("%w: listener %s panicked: %v", ErrListenerAborted, entry.id, r)
		}
	}()
	entry.listener(meta)
	return nil
}
