// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Configuration snapshot with reload propagation. The CLI stores the
// effective settings here; listeners react to changes of the config file.

package control

import (
	"sync"
)

// ConfigStore is a key/value snapshot with change listeners.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func(map[string]any)
}

// NewConfigStore initializes an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{config: make(map[string]any)}
}

// GetSnapshot returns a copy of all values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// SetConfig merges values and notifies listeners synchronously with the
// merged snapshot.
func (cs *ConfigStore) SetConfig(values map[string]any) {
	cs.mu.Lock()
	for k, v := range values {
		cs.config[k] = v
	}
	listeners := append([]func(map[string]any){}, cs.listeners...)
	cs.mu.Unlock()

	snap := cs.GetSnapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

// OnReload registers a listener called after every SetConfig.
func (cs *ConfigStore) OnReload(fn func(map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
