package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/utils"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through SendGrid in production and a development relay otherwise
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSender(cfg config.EmailConfig, production bool) *SMTPSender {
	s := &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
	}
	if production {
		s.host, s.port = "smtp.sendgrid.net", "587"
		s.username, s.password = cfg.SendGridUsername, cfg.SendGridPassword
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	raw := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.from, msg.To, msg.Subject, msg.Body))

	if err := smtp.SendMail(s.host+":"+s.port, auth, fromAddress(s.from), []string{msg.To}, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func fromAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

// Mailer composes the application's emails
type Mailer struct {
	sender Sender
	pool   *utils.WorkerPool
	log    *zap.Logger
}

func New(sender Sender, pool *utils.WorkerPool, log *zap.Logger) *Mailer {
	return &Mailer{sender: sender, pool: pool, log: log}
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name, url string) error {
	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: "Welcome to the Natours Family!",
		Body: fmt.Sprintf("Hi %s,\n\nWelcome to Natours, we're glad to have you.\n\n"+
			"Upload your user photo and start exploring tours: %s\n", firstName(name), url),
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, url string) error {
	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: "Your password reset token (valid for only 10 minutes)",
		Body: fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a PATCH request with your new password "+
			"and passwordConfirm to: %s\n\nIf you didn't forget your password, please ignore this email.\n",
			firstName(name), url),
	})
}

func (m *Mailer) SendBookingConfirmation(ctx context.Context, to, name, tourName string, price float64) error {
	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: "Your Natours booking is confirmed",
		Body: fmt.Sprintf("Hi %s,\n\nThanks for booking %s. We received your payment of $%.2f.\n",
			firstName(name), tourName, price),
	})
}

// Async runs send on the worker pool; failures are logged, not returned
func (m *Mailer) Async(kind string, send func(ctx context.Context) error) {
	err := m.pool.AddTask(func() {
		if err := send(context.Background()); err != nil {
			m.log.Warn("Email delivery failed", zap.String("email", kind), zap.Error(err))
		}
	})
	if err != nil {
		m.log.Warn("Email not queued", zap.String("email", kind), zap.Error(err))
	}
}
