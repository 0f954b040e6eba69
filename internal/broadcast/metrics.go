package broadcast

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/saferoute/saferoute/internal/broadcast"

// Metrics holds the broadcast instruments. A nil *Metrics records nothing.
type Metrics struct {
	observers metric.Int64UpDownCounter
	dropped   metric.Int64Counter
}

// NewMetrics creates the broadcast instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	observers, err := meter.Int64UpDownCounter(
		"broadcast.observers",
		metric.WithDescription("Number of connected hazard observers"),
		metric.WithUnit("{observer}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"broadcast.observers.dropped",
		metric.WithDescription("Observers dropped because their queue was full"),
		metric.WithUnit("{observer}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{observers: observers, dropped: dropped}, nil
}

func (m *Metrics) observerJoined() {
	if m != nil {
		m.observers.Add(context.TODO(), 1)
	}
}

func (m *Metrics) observerLeft() {
	if m != nil {
		m.observers.Add(context.TODO(), -1)
	}
}

func (m *Metrics) observerDropped() {
	if m != nil {
		m.dropped.Add(context.TODO(), 1)
	}
}
