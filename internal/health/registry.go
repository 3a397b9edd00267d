// Package health tracks the state of long-running runtime components so the
// readiness probe can report them.
package health

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
)

type Reporter interface {
	Starting(component, message string)
	Healthy(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Overall     string            `json:"overall"`
	Components  []ComponentStatus `json:"components"`
}

// Ready reports whether no component is degraded.
func (s Snapshot) Ready() bool {
	return s.Overall != StateDegraded
}

type Registry struct {
	now        func() time.Time
	mu         sync.RWMutex
	components map[string]ComponentStatus
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now, components: map[string]ComponentStatus{}}
}

func (r *Registry) Starting(component, message string) {
	r.set(component, StateStarting, message, nil)
}

func (r *Registry) Healthy(component, message string) {
	r.set(component, StateHealthy, message, nil)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.set(component, StateDegraded, message, err)
}

func (r *Registry) Disabled(component, message string) {
	r.set(component, StateDisabled, message, nil)
}

func (r *Registry) Stopped(component, message string) {
	r.set(component, StateStopped, message, nil)
}

func (r *Registry) set(component, state, message string, err error) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	status := ComponentStatus{
		Name:      name,
		State:     state,
		Message:   strings.TrimSpace(message),
		UpdatedAt: r.now().UTC(),
	}
	if err != nil {
		status.Error = strings.TrimSpace(err.Error())
	}
	r.mu.Lock()
	r.components[name] = status
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	components := make([]ComponentStatus, 0, len(r.components))
	for _, status := range r.components {
		components = append(components, status)
	}
	r.mu.RUnlock()
	sort.Slice(components, func(left, right int) bool {
		return components[left].Name < components[right].Name
	})
	return Snapshot{
		GeneratedAt: r.now().UTC(),
		Overall:     overall(components),
		Components:  components,
	}
}

func overall(components []ComponentStatus) string {
	if len(components) == 0 {
		return "unknown"
	}
	hasStarting := false
	hasHealthy := false
	for _, component := range components {
		switch component.State {
		case StateDegraded:
			return StateDegraded
		case StateStarting:
			hasStarting = true
		case StateHealthy:
			hasHealthy = true
		}
	}
	switch {
	case hasStarting:
		return StateStarting
	case hasHealthy:
		return StateHealthy
	default:
		return "idle"
	}
}
