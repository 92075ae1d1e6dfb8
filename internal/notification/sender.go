package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const senderTimeout = 10 * time.Second

// Message is a rendered notification ready for a channel.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// EmailSender posts messages to a transactional email HTTP API.
type EmailSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewEmailSender(url, apiKey, from string) *EmailSender {
	return &EmailSender{url: url, apiKey: apiKey, from: from, client: &http.Client{Timeout: senderTimeout}}
}

func (s *EmailSender) Channel() Channel { return ChannelEmail }

type emailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	return postJSON(ctx, s.client, s.url, "Bearer "+s.apiKey, emailPayload{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
}

// WhatsAppSender posts text messages to a WhatsApp business messaging API.
type WhatsAppSender struct {
	url    string
	token  string
	client *http.Client
}

func NewWhatsAppSender(url, token string) *WhatsAppSender {
	return &WhatsAppSender{url: url, token: token, client: &http.Client{Timeout: senderTimeout}}
}

func (s *WhatsAppSender) Channel() Channel { return ChannelWhatsApp }

type whatsAppPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	p := whatsAppPayload{MessagingProduct: "whatsapp", To: msg.To, Type: "text"}
	p.Text.Body = msg.Subject + "\n\n" + msg.Body
	return postJSON(ctx, s.client, s.url, "Bearer "+s.token, p)
}

func postJSON(ctx context.Context, client *http.Client, url, authorization string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
