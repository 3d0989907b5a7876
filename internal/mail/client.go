package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

/*
Client wraps minimal calls to a Resend-compatible email REST API.

Configuration:
- MAIL_API_URL  — API base, defaults to https://api.resend.com
- MAIL_API_KEY  — bearer token
- MAIL_FROM     — sender address, e.g. "LexBridge <no-reply@lexbridge.app>"
*/

type Client struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewClient() *Client {
	base := os.Getenv("MAIL_API_URL")
	if base == "" {
		base = "https://api.resend.com"
	}
	return &Client{
		baseURL: base,
		apiKey:  os.Getenv("MAIL_API_KEY"),
		from:    os.Getenv("MAIL_FROM"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// send posts one message to: POST /emails
func (c *Client) send(to, subject, html string) error {
	payload, _ := json.Marshal(map[string]any{
		"from":    c.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mail send error: %s | %s", res.Status, string(body))
	}
	return nil
}

// NotifyLawyerOfNewRequest emails a lawyer about a request addressed to them.
func (c *Client) NotifyLawyerOfNewRequest(to, lawyerName, clientName, title, description, urgency, category string) error {
	subject := "New engagement request: " + title
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p><strong>%s</strong> has sent you an engagement request.</p>
<p><strong>%s</strong> (%s, urgency: %s)</p>
<p>%s</p>
<p>Log in to accept or decline.</p>`,
		lawyerName, clientName, title, category, urgency, description)
	return c.send(to, subject, html)
}

// NotifyClientOfAcceptance emails the requesting client after an accept.
func (c *Client) NotifyClientOfAcceptance(to, clientName, lawyerName, title string) error {
	subject := "Your request was accepted"
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p><strong>%s</strong> accepted your request “%s”. They will be in touch shortly.</p>`,
		clientName, lawyerName, title)
	return c.send(to, subject, html)
}

// NotifyClientOfRejection emails the requesting client after a reject.
func (c *Client) NotifyClientOfRejection(to, clientName, lawyerName, title string) error {
	subject := "Your request was declined"
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p><strong>%s</strong> declined your request “%s”. You can send it to another lawyer or post it on the open board.</p>`,
		clientName, lawyerName, title)
	return c.send(to, subject, html)
}
