package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a mutable PauseView keyed by module name. The daemon seeds it from
// the Paused keys of the config file at startup; Set flips a switch in process.
type Pauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauses seeds the view with the supplied module flags.
func NewPauses(initial map[string]bool) *Pauses {
	p := &Pauses{paused: make(map[string]bool, len(initial))}
	for module, paused := range initial {
		p.Set(module, paused)
	}
	return p
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[normalizeModule(module)]
}

// Set pauses or resumes the module.
func (p *Pauses) Set(module string, paused bool) {
	if p == nil {
		return
	}
	key := normalizeModule(module)
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[key] = true
		return
	}
	delete(p.paused, key)
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
