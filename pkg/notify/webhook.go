package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

// WebhookNotifier posts the template projection as JSON to a URL. Server
// errors are retried; client errors are not. Requests are throttled so a
// burst of uploads can't flood the receiver.
type WebhookNotifier struct {
	URL      string
	BaseURL  string
	Attempts uint
	Delay    time.Duration
	limiter  *rate.Limiter
	client   *http.Client
}

func NewWebhookNotifier(url, baseURL string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:      url,
		BaseURL:  baseURL,
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Event  string   `json:"event"`
	BookID string   `json:"book_id"`
	Data   Template `json:"data"`
}

func (n *WebhookNotifier) BookVisible(ctx context.Context, event Event) error {
	body, err := json.Marshal(webhookPayload{
		Event:  "book.visible",
		BookID: event.Book.ID,
		Data:   TemplateData(event.Book, event.Uploader, n.BaseURL),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	err = retry.Do(
		func() error {
			return n.post(ctx, body)
		},
		retry.Context(ctx),
		retry.Attempts(max(n.Attempts, 1)),
		retry.Delay(n.Delay),
		retry.LastErrorOnly(true),
	)
	return errors.Wrap(err, "failed to deliver book visible webhook")
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return retry.Unrecoverable(errors.WithStack(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(errors.WithStack(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return retry.Unrecoverable(errors.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
