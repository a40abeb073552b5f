package observability

import "github.com/rs/zerolog"

// ZerologObserver adapts Observer onto a github.com/rs/zerolog.Logger,
// following the structured-event-with-fields style used throughout the
// retrieved corpus for production logging.
type ZerologObserver struct {
	logger zerolog.Logger
}

// NewZerologObserver wraps an existing zerolog.Logger.
func NewZerologObserver(logger zerolog.Logger) ZerologObserver {
	return ZerologObserver{logger: logger}
}

func (z ZerologObserver) Warn(event string, fields map[string]any) {
	evt := z.logger.Warn()
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(event)
}

func (z ZerologObserver) Info(event string, fields map[string]any) {
	evt := z.logger.Info()
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(event)
}

// CounterAdd is a no-op on ZerologObserver; pair it with PrometheusObserver
// inside a Multi when both structured logs and counters are wanted.
func (z ZerologObserver) CounterAdd(string, float64, map[string]string) {}

var _ Observer = ZerologObserver{}
