package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/pick27/internal/domain"
)

const maxReplyBytes = 1 << 20

// HTTPReasoner posts requests to a remote reasoning endpoint as JSON.
type HTTPReasoner struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPReasoner returns a reasoner for endpoint. A zero timeout waits as
// long as the transport allows.
func NewHTTPReasoner(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReasoner{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Reason sends {message, context} and decodes the reply. Non-2xx statuses
// and transport failures are errors; a body that is not JSON becomes a
// message-only reply.
func (r *HTTPReasoner) Reason(ctx context.Context, req domain.ReasonRequest) (*domain.ReasonResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode reasoning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build reasoning request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call reasoning service: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Debug("failed to close reasoning response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reasoning response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("reasoning service returned status %d", resp.StatusCode)
	}
	return DecodeReply(body), nil
}

// DecodeReply parses a reasoning reply. The body may be the reply object, a
// JSON string holding the reply object, or plain text. A recommendation that
// does not decode is dropped and the message kept.
func DecodeReply(body []byte) *domain.ReasonResponse {
	body = bytes.TrimSpace(body)

	var wrapped string
	if err := json.Unmarshal(body, &wrapped); err == nil {
		body = bytes.TrimSpace([]byte(wrapped))
	}

	var raw struct {
		Message        json.RawMessage `json:"message"`
		Recommendation json.RawMessage `json:"recommendation"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return &domain.ReasonResponse{Message: string(body)}
	}

	reply := &domain.ReasonResponse{}
	if len(raw.Message) > 0 {
		if err := json.Unmarshal(raw.Message, &reply.Message); err != nil {
			reply.Message = string(raw.Message)
		}
	}
	if len(raw.Recommendation) > 0 && !bytes.Equal(raw.Recommendation, []byte("null")) {
		var rec domain.Recommendation
		if err := json.Unmarshal(raw.Recommendation, &rec); err == nil {
			reply.Recommendation = &rec
		}
	}
	return reply
}
