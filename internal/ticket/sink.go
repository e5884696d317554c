package ticket

import (
	"context"
	"fmt"
	"time"

	"healthwatch/internal/model"
)

// Request is the MCP-shaped payload delivered to the maintenance system.
type Request struct {
	Type        string `json:"type"`
	ServerLabel string `json:"server_label"`
	Tool        string `json:"tool"`
	Params      Params `json:"params"`
}

type Params struct {
	MachineID      string    `json:"machine_id"`
	AnomalyScore   float64   `json:"anomaly_score"`
	RULEstimate    model.RUL `json:"rul_estimate"`
	TriggeredAt    time.Time `json:"triggered_at"`
	CorrelationKey string    `json:"correlation_key"`
	TraceID        string    `json:"trace_id,omitempty"`
}

// Sink is the capability the orchestrator depends on to create maintenance
// tickets. Any transport can satisfy it; the returned ticket id is opaque.
type Sink interface {
	Submit(ctx context.Context, req Request) (ticketID string, err error)
}

// NewRequest builds the wire payload for one alert.
func NewRequest(serverLabel, tool string, alert model.MaintenanceAlert, traceID string) Request {
	return Request{
		Type:        "mcp",
		ServerLabel: serverLabel,
		Tool:        tool,
		Params: Params{
			MachineID:      alert.MachineID,
			AnomalyScore:   alert.AnomalyScore,
			RULEstimate:    alert.RULEstimate,
			TriggeredAt:    alert.TriggeredAt,
			CorrelationKey: alert.CorrelationKey,
			TraceID:        traceID,
		},
	}
}

// CorrelationKey is deterministic for a given machine and trigger instant, so
// tickets can be matched and deduplicated without the sink.
func CorrelationKey(machineID string, triggeredAt time.Time) string {
	return fmt.Sprintf("%s-%d", machineID, triggeredAt.Unix())
}
