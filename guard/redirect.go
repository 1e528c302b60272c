package guard

import "sync"

// DefaultLandingPath is where a successful sign-in lands when no blocked
// destination was recorded.
const DefaultLandingPath = "/"

// RedirectMemory remembers the last protected destination a visitor was
// blocked from. Single slot, last writer wins; consuming clears it so a
// stale destination is never reused.
type RedirectMemory struct {
	mu   sync.Mutex
	path string
	def  string
}

// NewRedirectMemory creates an empty memory. An empty defaultPath falls
// back to DefaultLandingPath.
func NewRedirectMemory(defaultPath string) *RedirectMemory {
	if defaultPath == "" {
		defaultPath = DefaultLandingPath
	}
	return &RedirectMemory{def: defaultPath}
}

// Set overwrites the remembered path unconditionally.
func (m *RedirectMemory) Set(path string) {
	m.mu.Lock()
	m.path = path
	m.mu.Unlock()
}

// ConsumeAndClear returns the remembered path, or the default landing
// path if none is set, and clears the slot in the same step.
func (m *RedirectMemory) ConsumeAndClear() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := m.path
	m.path = ""
	if path == "" {
		return m.def
	}
	return path
}
