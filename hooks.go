package binstream

import (
	"reflect"
	"sync"
)

// LifecycleHooks are three callback points: pre-serialization,
// post-serialization and post-deserialization, invoked exactly once
// per unique object per traversal. Grounded on type.go's event-free,
// single-callable-per-phase approach.
type LifecycleHooks struct {
	PreSerialize    func(obj interface{})
	PostSerialize   func(obj interface{})
	PostDeserialize func(obj interface{}) interface{}
}

type hookRegistry struct {
	mu    sync.RWMutex
	byTyp map[reflect.Type]LifecycleHooks
}

var globalHooks = &hookRegistry{byTyp: make(map[reflect.Type]LifecycleHooks)}

// RegisterHooks attaches lifecycle callbacks to typ. Any of the three
// fields may be nil. Safe to call from multiple goroutines, but like
// the swap tables this is meant to be configured once at startup.
func RegisterHooks(typ reflect.Type, hooks LifecycleHooks) {
	globalHooks.mu.Lock()
	defer globalHooks.mu.Unlock()
	globalHooks.byTyp[typ] = hooks
}

func (h *hookRegistry) lookup(typ reflect.Type) (LifecycleHooks, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hooks, ok := h.byTyp[typ]
	return hooks, ok
}
