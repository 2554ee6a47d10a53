package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zsolti91h/fare-watch/pkg/model"
)

// WebhookNotifier posts fare alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	payload := farePayload{
		Event:     "fare_alert",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     msg.RunID,
		Trip:      msg.Trip,
		Subject:   msg.Subject,
		Deals:     make([]fareDeal, 0, len(msg.Deals)),
	}
	for _, d := range msg.Deals {
		payload.Deals = append(payload.Deals, fareDeal{
			Fingerprint:   d.Fingerprint,
			Route:         d.Origin + "-" + d.Destination,
			Origin:        d.Origin,
			Destination:   d.Destination,
			DepartureDate: d.DepartureDate,
			ReturnDate:    d.ReturnDate,
			Price:         d.Price.StringFixed(2),
			Currency:      d.Currency,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fare alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fare-watch/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post fare alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type farePayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Trip      model.TripType `json:"trip_type"`
	Subject   string         `json:"subject"`
	Deals     []fareDeal     `json:"deals"`
}

// fareDeal is one deal on the wire. Price is a fixed two-decimal string.
type fareDeal struct {
	Fingerprint   string `json:"fingerprint"`
	Route         string `json:"route"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
