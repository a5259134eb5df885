package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const (
	userAgent      = "reelsmith/dev"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

// Message is one push notification.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Notifier delivers messages to a push service.
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
}

// NewNotifier builds an ntfy notifier for cfg. When no topic is configured a
// no-op notifier is returned.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg == nil {
		return noopNotifier{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether n actually delivers anything.
func Enabled(n Notifier) bool {
	if n == nil {
		return false
	}
	_, noop := n.(noopNotifier)
	return !noop
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) Publish(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, Message) error { return nil }
