package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs terminal failure records to configured URLs so
// operators can alert on permanently failed documents.
type WebhookNotifier struct {
	urls   []string
	client *http.Client
}

// NewWebhookNotifier creates a notifier; an empty URL list disables it.
func NewWebhookNotifier(urls []string) *WebhookNotifier {
	return &WebhookNotifier{
		urls: urls,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type failurePayload struct {
	Event    string         `json:"event"`
	Time     time.Time      `json:"time"`
	Document FailedDocument `json:"document"`
}

// NotifyFailure delivers the failure to every webhook. Delivery errors
// are logged; notifications are best effort.
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, failed FailedDocument) {
	if len(n.urls) == 0 {
		return
	}

	payload, err := json.Marshal(failurePayload{
		Event:    "document_failed",
		Time:     time.Now().UTC(),
		Document: failed,
	})
	if err != nil {
		log.Printf("webhook: encoding failure payload: %v", err)
		return
	}

	for _, url := range n.urls {
		if err := n.send(ctx, url, payload); err != nil {
			log.Printf("webhook: %s: %v", url, err)
		}
	}
}

func (n *WebhookNotifier) send(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
