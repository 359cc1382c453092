package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches the Brevo v3 transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoContact   `json:"sender"`
	To          []BrevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	ReplyTo     *BrevoContact  `json:"replyTo,omitempty"`
}

type BrevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sender sends subscriber emails. A nil Sender means no email is sent.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
}

// BrevoClient sends emails via the Brevo (Sendinblue) API. An empty APIKey makes every send a no-op.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Endpoint string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "hello@easyflip.ai"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoClient) send(ctx context.Context, to BrevoContact, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoContact{Email: c.from(), Name: "EasyFlip"},
		To:          []BrevoContact{to},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoContact{Email: "support@easyflip.ai", Name: "EasyFlip Support"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendWelcome greets a new waitlist subscriber.
func (c *BrevoClient) SendWelcome(ctx context.Context, toEmail, name string) error {
	if c.APIKey == "" {
		return nil
	}
	greeting := name
	if greeting == "" {
		greeting = "there"
	}
	return c.send(ctx, BrevoContact{Email: toEmail, Name: name}, "Welcome to EasyFlip", EmailLayout(welcomeContent(greeting)))
}

func welcomeContent(name string) string {
	return fmt.Sprintf(`
    <h1>Thanks for signing up, %s!</h1>
    <p>You're on the list for <strong>EasyFlip</strong>, the fastest way to turn a pile of photos into listings that sell.</p>
    <p>Snap your items, group them by SKU, and let EasyFlip write the title, description and price. Publish to eBay in one click.</p>
    <center>
      <a href="%s" class="ef-button">Get started</a>
    </center>
    <p>The EasyFlip Team</p>
`, EscapeHTML(name), siteURL)
}
