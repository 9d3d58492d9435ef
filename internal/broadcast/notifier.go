package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// HTTPNotifier posts payloads to a per-category endpoint
type HTTPNotifier struct {
	endpoints map[string]string
	token     string
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPNotifier creates an HTTPNotifier. endpoints maps category to URL.
func NewHTTPNotifier(endpoints map[string]string, token string, timeout time.Duration, logger *slog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		endpoints: endpoints,
		token:     token,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Send posts payload as JSON. Any non-2xx response is ErrNotificationFailed.
func (n *HTTPNotifier) Send(ctx context.Context, payload *Payload) error {
	endpoint, ok := n.endpoints[payload.Category]
	if !ok {
		return fmt.Errorf("%w: no endpoint for category %q", domain.ErrNotificationFailed, payload.Category)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		n.logger.Error("Notification endpoint rejected payload",
			slog.String("category", payload.Category),
			slog.Int("status", res.StatusCode),
			slog.String("body", string(data)),
		)
		return fmt.Errorf("%w: status %d", domain.ErrNotificationFailed, res.StatusCode)
	}

	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
