package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cyberinferno/caro-server/logger"
)

// DiscordNotifier mirrors service events to a Discord channel through its
// webhook. Posts happen on the caller's goroutine with a short timeout so a
// slow webhook cannot stall a session handler for long; delivery failures
// are logged and dropped.
type DiscordNotifier struct {
	Webhook string
	Log     logger.Logger

	client *http.Client
}

// NewDiscordNotifier creates a notifier posting to webhook.
//
// Parameters:
//   - webhook: The Discord webhook URL to POST to
//   - log: Destination for delivery failures
//
// Returns:
//   - A DiscordNotifier ready for use
func NewDiscordNotifier(webhook string, log logger.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		Webhook: webhook,
		Log:     log,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Event implements Notifier.
func (n *DiscordNotifier) Event(msg string) {
	body, err := json.Marshal(map[string]string{"content": msg})
	if err != nil {
		return
	}

	resp, err := n.client.Post(n.Webhook, "application/json", bytes.NewReader(body))
	if err != nil {
		n.Log.Warn("discord notification failed", logger.Field{Key: "error", Value: err})
		return
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
