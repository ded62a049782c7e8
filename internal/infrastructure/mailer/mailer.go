package mailer

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/config"
)

// Mailer sends transactional emails. Send reports success as a bool:
// callers treat delivery as best-effort and must not fail their flow
// on a false return.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) bool
}

type httpMailer struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewMailer(cfg *config.Config) Mailer {
	return &httpMailer{
		apiURL: cfg.MailAPIURL,
		apiKey: cfg.MailAPIKey,
		from:   cfg.MailFrom,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *httpMailer) Send(ctx context.Context, to, subject, html string) bool {
	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("html", html)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		slog.Warn("failed to build mail request", "to", to, "err", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Warn("mail API request failed", "to", to, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("mail API returned non-2xx", "to", to, "status", resp.StatusCode)
		return false
	}
	return true
}
