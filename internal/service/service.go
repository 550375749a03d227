// Package service holds the command and query cores: input validation,
// precondition checks, store orchestration, and event publication. Handlers
// stay thin and map the domain sentinels to HTTP statuses.
package service

import (
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
)

// publish delivers ev on the bus. Publication is best-effort and never fails
// the originating request; the commit already happened.
func publish(b *bus.Bus, ev domain.Event) {
	if b == nil {
		return
	}
	b.Publish(ev)
	metrics.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
}
