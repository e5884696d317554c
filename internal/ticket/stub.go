package ticket

import (
	"context"
	"fmt"
	"log/slog"
)

// StubSink stands in for the CMMS when no endpoint is configured. It logs the
// payload and mints a deterministic ticket id from the correlation key.
type StubSink struct {
	logger *slog.Logger
}

func NewStubSink(logger *slog.Logger) *StubSink {
	return &StubSink{logger: logger}
}

func (s *StubSink) Submit(_ context.Context, req Request) (string, error) {
	ticketID := fmt.Sprintf("TCK-%s", req.Params.CorrelationKey)
	if s.logger != nil {
		s.logger.Warn("maintenance ticket (stub)",
			"machine_id", req.Params.MachineID,
			"anomaly_score", req.Params.AnomalyScore,
			"rul_known", req.Params.RULEstimate.Known,
			"rul_seconds", req.Params.RULEstimate.Seconds,
			"ticket_id", ticketID,
		)
	}
	return ticketID, nil
}
