package automod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/rules"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Forwards rule "notify" messages to a slack channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

var _ rules.Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, sender event.Sender, rule *rules.Rule, message string) error {
	msg := fmt.Sprintf("⚠ `%s` matched rule `%s` (%s:%d)\n%s", sender.Name(), rule.ID(), rule.File, rule.Line, message)
	return n.SendSlackMsg(ctx, msg)
}

// Sends a simple slack message to the webhook channel.
func (n *SlackNotifier) SendSlackMsg(ctx context.Context, msg string) error {
	// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/

	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
