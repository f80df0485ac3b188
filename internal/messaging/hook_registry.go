package messaging

import (
	"log/slog"
	"sync"
)

// Hook observes an outbound message after it has been queued. Hooks must
// not block; long work belongs in the hook's own goroutine.
type Hook func(msg OutboundMessage)

// HookRegistry manages named observers of outbound messages. The process
// wires audit logging and delivery bookkeeping here instead of baking
// them into the sender.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]Hook)}
}

// Register adds or replaces a named hook.
func (r *HookRegistry) Register(name string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = hook
	slog.Debug("HookRegistry.Register: hook registered", "name", name)
}

// Unregister removes a named hook. Removing an absent hook is a no-op.
func (r *HookRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, name)
	slog.Debug("HookRegistry.Unregister: hook removed", "name", name)
}

// Names returns the registered hook names.
func (r *HookRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether a hook with the given name exists.
func (r *HookRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hooks[name]
	return ok
}

func (r *HookRegistry) dispatch(msg OutboundMessage) {
	r.mu.RLock()
	hooks := make([]Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		hooks = append(hooks, h)
	}
	r.mu.RUnlock()

	for _, h := range hooks {
		h(msg)
	}
}
