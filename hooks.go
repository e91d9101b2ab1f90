package worldfeed

import (
	"sync"

	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Hook function types for cycle events
type (
	// CycleHook is called after every cycle that accepted a snapshot
	CycleHook func(report *CycleReport)

	// BuildHook is called when a region reports a new build label
	BuildHook func(region worldstate.Region, version worldstate.VersionRecord)
)

// hooks manages cycle callbacks
type hooks struct {
	mu             sync.RWMutex
	onCycle        []CycleHook
	onBuildChanged []BuildHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnCycle registers a callback for finished cycles
func (h *hooks) OnCycle(fn CycleHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCycle = append(h.onCycle, fn)
}

// OnBuildChanged registers a callback for build label transitions
func (h *hooks) OnBuildChanged(fn BuildHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBuildChanged = append(h.onBuildChanged, fn)
}

// trigger runs the hooks that match a finished cycle
func (h *hooks) trigger(report *CycleReport) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if report.Version != nil {
		for _, fn := range h.onBuildChanged {
			fn(report.Region, *report.Version)
		}
	}
	for _, fn := range h.onCycle {
		fn(report)
	}
}
