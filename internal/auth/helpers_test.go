package auth

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/spec-kit/session-gate/internal/observability"
)

func counterValue(m *observability.Metrics, decision string) float64 {
	metric := &dto.Metric{}
	if err := m.GateDecisions().WithLabelValues(decision).Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func renewalValue(m *observability.Metrics, outcome string) float64 {
	metric := &dto.Metric{}
	if err := m.Renewals().WithLabelValues(outcome).Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
