package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPSink posts the MCP payload to a CMMS gateway endpoint and reads the
// ticket id from the JSON response.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewHTTPSink(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type ticketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

func (s *HTTPSink) Submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode ticket request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ticket request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit ticket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ticket endpoint returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ticket response: %w", err)
	}
	var tr ticketResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("decode ticket response: %w", err)
	}
	if tr.TicketID == "" {
		return "", fmt.Errorf("ticket endpoint returned no ticket_id")
	}
	if s.logger != nil {
		s.logger.Info("maintenance ticket created",
			"machine_id", req.Params.MachineID,
			"ticket_id", tr.TicketID,
			"correlation_key", req.Params.CorrelationKey,
		)
	}
	return tr.TicketID, nil
}
