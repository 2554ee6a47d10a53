package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends alerts to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, msg Message) error {
	now := time.Now().Unix()
	attachments := make([]slackAttachment, 0, len(msg.Deals))
	for _, d := range msg.Deals {
		fields := []slackField{
			{Title: "Route", Value: d.Origin + " → " + d.Destination, Short: true},
			{Title: "Price", Value: d.Price.StringFixed(2) + " " + d.Currency, Short: true},
			{Title: "Departure", Value: d.DepartureDate, Short: true},
		}
		if d.ReturnDate != "" {
			fields = append(fields, slackField{Title: "Return", Value: d.ReturnDate, Short: true})
		}
		attachments = append(attachments, slackAttachment{
			Color:  "#36a64f", // green
			Title:  fmt.Sprintf("%s → %s", d.Origin, d.Destination),
			Fields: fields,
			Footer: "fare-watch",
			Ts:     now,
		})
	}

	payload := slackPayload{
		Channel:     s.channel,
		Text:        msg.Subject,
		Attachments: attachments,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
