// Package mailer delivers uploader notifications through a transactional
// email HTTP API. Delivery is always best-effort: nothing here returns an
// error to the code paths that enqueue mail.
package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gpx/backend/internal/config"

	log "github.com/sirupsen/logrus"
)

// Message is one outbound notification.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

var (
	enabled  bool
	apiKey   string
	apiURL   string
	from     string
	fromName string

	client = &http.Client{Timeout: 10 * time.Second}
)

// Init configures the sender from the application config. When the mailer is
// disabled every send becomes a logged no-op.
func Init(cfg *config.Config) {
	enabled = cfg.EmailEnabled
	apiKey = cfg.EmailAPIKey
	apiURL = cfg.EmailAPIURL
	from = cfg.MailFrom
	fromName = cfg.MailFromName
}

type apiRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type apiPayload struct {
	Sender      apiRecipient   `json:"sender"`
	To          []apiRecipient `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
}

// send posts one message to the email API.
func send(msg Message) error {
	if !enabled {
		log.WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).
			Debug("mailer disabled, skipping send")
		return nil
	}

	payload := apiPayload{
		Sender:      apiRecipient{Email: from, Name: fromName},
		To:          []apiRecipient{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("email API returned %s", resp.Status)
	}
	return nil
}
