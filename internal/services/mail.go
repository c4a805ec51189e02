package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends account notifications.
type Mailer interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
}

type SendGridMailer struct {
	client   *sendgrid.Client
	from     *mail.Email
	loginURL string
}

func NewSendGridMailer(apiKey, fromAddress, loginURL string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		from:     mail.NewEmail("ARMMI Data Assistant", fromAddress),
		loginURL: loginURL,
	}
}

func (m *SendGridMailer) SendWelcome(ctx context.Context, toEmail, name string) error {
	message := welcomeMessage(m.from, toEmail, name, m.loginURL)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func welcomeMessage(from *mail.Email, toEmail, name, loginURL string) *mail.SGMailV3 {
	subject := "Welcome to the ARMMI Data Assistant"
	to := mail.NewEmail(name, toEmail)

	htmlContent := fmt.Sprintf(`
        <div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; text-align: center;">
			<div style="background-color: #ffffff; border-radius: 8px; padding: 30px; box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1); display: inline-block; text-align: center;">
				<h1 style="color: #2c3e50; margin-bottom: 20px;">Your account is ready</h1>
				<p>Hello %s,</p>
				<p>Upload a CSV or Excel file and ask questions about it in plain language.</p>
				<a href="%s/login" style="display: inline-block; background-color: #3498db; color: #ffffff; text-decoration: none; padding: 12px 24px; border-radius: 4px; font-weight: bold; margin-top: 20px;">Get Started</a>
			</div>
		</div>
        `, name, loginURL)

	plainTextContent := fmt.Sprintf("Hello %s, your account is ready. Sign in to get started: %s/login", name, loginURL)

	return mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
}
