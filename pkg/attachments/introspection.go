package attachments

import (
	"github.com/aretw0/introspection"
)

// MirrorState exposes internal state for observability.
type MirrorState struct {
	Dir           string `json:"dir"`
	Pattern       string `json:"pattern"`
	Target        string `json:"target"`
	IndexSize     int    `json:"index_size"`
	WatcherActive bool   `json:"watcher_active"`
}

// State implements introspection.Introspectable.
func (m *Mirror) State() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MirrorState{
		Dir:           m.config.Dir,
		Pattern:       m.config.Pattern,
		Target:        m.holder.URI(),
		IndexSize:     m.index.Len(),
		WatcherActive: m.watcherActive,
	}
}

// ComponentType implements introspection.Component.
func (m *Mirror) ComponentType() string {
	return "attachment-mirror"
}

var _ introspection.Introspectable = (*Mirror)(nil)
var _ introspection.Component = (*Mirror)(nil)

func (m *Mirror) setWatcherActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watcherActive = active
}
