package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"screendescribe/internal/config"
)

const userAgent = "screendescribe/0.1"

// Event names a notification-worthy workflow milestone.
type Event string

const (
	// EventRunFailed fires when a run ends in a step failure.
	EventRunFailed Event = "run_failed"
	// EventRunRecovered fires on the first successful run after one or more failures.
	EventRunRecovered Event = "run_recovered"
	// EventTest is sent by `screendescribe notify test`.
	EventTest Event = "test"
)

// Payload carries event-specific values such as "stage", "error", or "failures".
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		failures: cfg.Notifications.Failures,
		recovery: cfg.Notifications.Recovery,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	failures bool
	recovery bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunFailed:
		if !n.failures {
			return message{}, false
		}
		body := fmt.Sprintf("Run failed during %s: %s", payloadString(payload, "stage", "unknown step"), payloadString(payload, "error", "unknown error"))
		return message{
			title:    "screendescribe - Run Failed",
			body:     body,
			tags:     []string{"screendescribe", "error", "alert"},
			priority: "high",
		}, true
	case EventRunRecovered:
		if !n.recovery {
			return message{}, false
		}
		body := "Runs are succeeding again"
		if failures := payloadString(payload, "failures", ""); failures != "" {
			body = fmt.Sprintf("Runs are succeeding again after %s failed run(s)", failures)
		}
		if description := payloadString(payload, "description", ""); description != "" {
			body += "\n" + description
		}
		return message{
			title: "screendescribe - Recovered",
			body:  body,
			tags:  []string{"screendescribe", "recovered"},
		}, true
	case EventTest:
		return message{
			title:    "screendescribe - Test",
			body:     "Notification system test",
			tags:     []string{"screendescribe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return fallback
	}
	return text
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
