package server

import (
	"fmt"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the prometheus metrics of one server.
// Every server gets its own metrics.Set so several servers can live in one process.
type serverMetrics struct {
	set          *metrics.Set
	accepted     *metrics.Counter
	closed       *metrics.Counter
	acceptErrors *metrics.Counter
	unsupported  *metrics.Counter
	malformed    *metrics.Counter
}

func newServerMetrics(active func() float64) *serverMetrics {
	set := metrics.NewSet()
	set.NewGauge("scired_connections_active", active)

	return &serverMetrics{
		set:          set,
		accepted:     set.NewCounter("scired_connections_accepted_total"),
		closed:       set.NewCounter("scired_connections_closed_total"),
		acceptErrors: set.NewCounter("scired_accept_errors_total"),
		unsupported:  set.NewCounter("scired_unsupported_commands_total"),
		malformed:    set.NewCounter("scired_malformed_requests_total"),
	}
}

// request counts a dispatched request by operation and outcome
func (m *serverMetrics) request(op dispatch.OperationType, out dispatch.OutcomeType) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`scired_requests_total{op=%q,outcome=%q}`, op, out)).Inc()
}
