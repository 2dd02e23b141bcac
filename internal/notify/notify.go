package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// Multi delivers each outcome to every sink in order. Nil sinks are skipped.
type Multi []wifi.Notifier

// NewMulti builds a Multi, dropping nil entries.
func NewMulti(sinks ...wifi.Notifier) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) Notify(o wifi.Outcome) {
	for _, s := range m {
		s.Notify(o)
	}
}

// Relay forwards to sinks attached after the controller is built, such as
// the server that itself needs the controller.
type Relay struct {
	mu    sync.RWMutex
	sinks Multi
}

// Attach adds sinks. Nil sinks are skipped.
func (r *Relay) Attach(sinks ...wifi.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, NewMulti(sinks...)...)
}

func (r *Relay) Notify(o wifi.Outcome) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.sinks.Notify(o)
}

// Log writes outcomes to the process logger.
type Log struct{}

func (Log) Notify(o wifi.Outcome) {
	fields := []zap.Field{
		zap.String("kind", string(o.Kind)),
		zap.String("state", o.State),
	}
	if o.SSID != "" {
		fields = append(fields, zap.String("ssid", o.SSID))
	}
	if o.IP != "" {
		fields = append(fields, zap.String("ip", o.IP))
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}

	if err := o.Err(); err != nil {
		logging.Warn("Provisioning failed", append(fields, zap.Int("retries", o.Retries), zap.Error(err))...)
		return
	}
	logging.Info("Provisioning outcome", fields...)
}
