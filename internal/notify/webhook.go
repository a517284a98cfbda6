package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/pv/precog-panel/internal/config"
)

// WebhookSink отправляет оповещения JSON-запросом POST
type WebhookSink struct {
	url    string
	client *resty.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
	Alert   Alert       `json:"alert"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookSink создаёт получателя по конфигурации
func NewWebhookSink(cfg *config.WebhookConfig) *WebhookSink {
	s := &WebhookSink{client: resty.New().SetTimeout(cfg.GetTimeout())}
	if cfg != nil {
		s.url = cfg.URL
	}
	return s
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, alert Alert) error {
	if s == nil || s.url == "" {
		return errors.New("webhook sink: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlert(alert)},
		Alert:   alert,
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(s.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook sink: status %d", resp.StatusCode())
	}
	return nil
}

func formatAlert(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[PRECOG] %s\n", a.Title)
	b.WriteString(a.Body)
	if a.Link != "" {
		fmt.Fprintf(&b, "\n%s", a.Link)
	}
	return b.String()
}
