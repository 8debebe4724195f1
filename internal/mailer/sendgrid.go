package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/keymint-labs/keymint-backend/pkg/config"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
)

const (
	sendgridMailEndpoint = "https://api.sendgrid.com/v3/mail/send"
	sendTimeout          = 10 * time.Second
)

// LicenseKeyMessage is the mail the buyer receives after a purchase.
type LicenseKeyMessage struct {
	To         string
	PluginName string
	LicenseKey string
}

// Sender delivers license key mail.
type Sender interface {
	SendLicenseKey(ctx context.Context, msg LicenseKeyMessage) error
}

// SendgridSender delivers mail through the Sendgrid v3 REST API.
type SendgridSender struct {
	cfg      config.SendgridConfig
	client   *http.Client
	endpoint string
	logg     *logger.Logger
}

func NewSendgridSender(cfg config.SendgridConfig, logg *logger.Logger) (*SendgridSender, error) {
	if cfg.APIKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sendgrid api key required")
	}
	if cfg.DefaultFrom == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sendgrid from address required")
	}
	return &SendgridSender{
		cfg:      cfg,
		client:   &http.Client{Timeout: sendTimeout},
		endpoint: sendgridMailEndpoint,
		logg:     logg,
	}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridMail struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// SendLicenseKey mails the license key to the buyer.
func (s *SendgridSender) SendLicenseKey(ctx context.Context, msg LicenseKeyMessage) error {
	if msg.To == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address required")
	}

	body := sendgridMail{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: msg.To}}}},
		From:             sendgridAddress{Email: s.cfg.DefaultFrom},
		Subject:          fmt.Sprintf("Your %s license key", msg.PluginName),
		Content: []sendgridContent{{
			Type: "text/plain",
			Value: fmt.Sprintf(
				"Thanks for purchasing %s.\n\nYour license key:\n\n%s\n\nActivate it from the plugin settings screen.\n",
				msg.PluginName, msg.LicenseKey,
			),
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send mail")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, string(detail)))
	}
	return nil
}
