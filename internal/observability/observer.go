// Package observability is the small ambient interface the core accepts at
// construction instead of calling a logging or metrics package directly
// (spec §9, design note "Global ambient logging"). Production code passes
// one of the concrete adapters in this package; tests pass nothing and get
// the no-op default.
package observability

// Observer receives the handful of events the core ever emits: a warning
// when a frame is dropped, an info line for lifecycle transitions, and
// counters for the recurring quantities an operator would want graphed
// (rejections, registrations, evictions, fan-outs, resolutions).
type Observer interface {
	Warn(event string, fields map[string]any)
	Info(event string, fields map[string]any)
	CounterAdd(name string, delta float64, labels map[string]string)
}

// Noop discards every event. It is the default when no Observer is
// supplied, matching the teacher's "default to a no-op implementation".
type Noop struct{}

func (Noop) Warn(string, map[string]any)                {}
func (Noop) Info(string, map[string]any)                {}
func (Noop) CounterAdd(string, float64, map[string]string) {}

var _ Observer = Noop{}

// Multi fans every call out to all of its members, letting an application
// wire both a logger and a metrics sink into one Observer value.
type Multi []Observer

func (m Multi) Warn(event string, fields map[string]any) {
	for _, o := range m {
		o.Warn(event, fields)
	}
}

func (m Multi) Info(event string, fields map[string]any) {
	for _, o := range m {
		o.Info(event, fields)
	}
}

func (m Multi) CounterAdd(name string, delta float64, labels map[string]string) {
	for _, o := range m {
		o.CounterAdd(name, delta, labels)
	}
}

var _ Observer = Multi(nil)
