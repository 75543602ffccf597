package mailer

import "github.com/dukkan/storefront-gateway/pkg/logger"

// DevMailer logs instead of sending. Active when EMAIL_DEV_MODE is set
// or no MailerSend key is configured.
type DevMailer struct{}

func NewDevMailer() *DevMailer { return &DevMailer{} }

func (d *DevMailer) SendWelcomeEmail(toEmail, toName string) error {
	logger.Info("DEV EMAIL: welcome", "to", toEmail, "name", toName)
	return nil
}
