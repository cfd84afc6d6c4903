package mailer

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/econsulaire/portal/internal/config"
)

// Mailer sends transactional mail. When no API key is configured, sends
// become no-ops that only log, so development setups work without SendGrid.
type Mailer struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
	enabled   bool
}

func New(cfg config.EmailConfig) *Mailer {
	m := &Mailer{
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}
	if cfg.APIKey != "" {
		m.client = sendgrid.NewSendClient(cfg.APIKey)
		m.enabled = true
	} else {
		log.Println("📧 Email disabled: SENDGRID_API_KEY not set")
	}
	return m
}

// Enabled reports whether mail will actually leave the process.
func (m *Mailer) Enabled() bool {
	return m.enabled
}

// Send delivers a single HTML email.
func (m *Mailer) Send(toName, toEmail, subject, htmlBody string) error {
	if !m.enabled {
		log.Printf("📧 [dry-run] to=%s subject=%q", toEmail, subject)
		return nil
	}

	from := sgmail.NewEmail(m.fromName, m.fromEmail)
	to := sgmail.NewEmail(toName, toEmail)
	message := sgmail.NewSingleEmail(from, subject, to, "", htmlBody)

	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
