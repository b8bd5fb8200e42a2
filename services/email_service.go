package services

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"messenger-api/config"
)

// Mailer sends the notification mails of the service. Delivery is best
// effort: callers log failures and carry on.
type Mailer interface {
	SendWelcome(email, name string) error
	SendFriendRequest(email, recipientName, senderName string) error
}

type EmailService struct {
	config *config.Config
	dialer *gomail.Dialer
	log    *zap.Logger
}

func NewEmailService(cfg *config.Config, log *zap.Logger) *EmailService {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)

	return &EmailService{
		config: cfg,
		dialer: dialer,
		log:    log,
	}
}

func (es *EmailService) newMessage(to, subject, text, html string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", es.config.FromName, es.config.FromEmail))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)
	return m
}

func (es *EmailService) send(m *gomail.Message, to, kind string) error {
	if err := es.dialer.DialAndSend(m); err != nil {
		es.log.Warn("email delivery failed", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	es.log.Info("email sent", zap.String("kind", kind), zap.String("to", to))
	return nil
}

func (es *EmailService) SendWelcome(email, name string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Welcome</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { text-align: center; background: #4f46e5; color: white; padding: 20px; border-radius: 10px 10px 0 0; }
        .content { background: #f8f9fa; padding: 30px; border-radius: 0 0 10px 10px; }
        .footer { text-align: center; margin-top: 20px; color: #666; font-size: 14px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>%s</h1>
        </div>
        <div class="content">
            <h2>Hello %s!</h2>
            <p>Your account is ready. Find your friends and start a conversation.</p>
            <p>If you didn't create this account, please ignore this email.</p>
        </div>
        <div class="footer">
            <p>This is an automated email, please do not reply.</p>
        </div>
    </div>
</body>
</html>`, es.config.FromName, name)

	textBody := fmt.Sprintf(`
Hello %s!

Your account is ready. Find your friends and start a conversation.

If you didn't create this account, please ignore this email.
`, name)

	m := es.newMessage(email, fmt.Sprintf("Welcome to %s", es.config.FromName), textBody, htmlBody)
	return es.send(m, email, "welcome")
}

func (es *EmailService) SendFriendRequest(email, recipientName, senderName string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New friend request</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .content { background: #f8f9fa; padding: 30px; border-radius: 10px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="content">
            <h2>Hi %s,</h2>
            <p><strong>%s</strong> sent you a friend request.</p>
            <p>Open the app to accept or decline it.</p>
        </div>
    </div>
</body>
</html>`, recipientName, senderName)

	textBody := fmt.Sprintf(`
Hi %s,

%s sent you a friend request. Open the app to accept or decline it.
`, recipientName, senderName)

	m := es.newMessage(email, fmt.Sprintf("%s wants to be your friend", senderName), textBody, htmlBody)
	return es.send(m, email, "friend_request")
}

// NoopMailer only logs. It is used when no SMTP relay is configured.
type NoopMailer struct {
	log *zap.Logger
}

func NewNoopMailer(log *zap.Logger) *NoopMailer {
	return &NoopMailer{log: log}
}

func (m *NoopMailer) SendWelcome(email, name string) error {
	m.log.Debug("mail disabled, skipping welcome email", zap.String("to", email))
	return nil
}

func (m *NoopMailer) SendFriendRequest(email, recipientName, senderName string) error {
	m.log.Debug("mail disabled, skipping friend request email", zap.String("to", email))
	return nil
}
