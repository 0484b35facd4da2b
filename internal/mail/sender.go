package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"storefront/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is a single outgoing email
type Message struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when SMTP is configured and a logging
// sender otherwise
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, order emails will only be logged")
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}

// NewMessage assigns a fresh Message-ID to a message
func NewMessage(to, subject, html string) Message {
	return Message{
		ID:      uuid.New().String(),
		To:      to,
		Subject: subject,
		HTML:    html,
	}
}

// SMTPSender delivers messages through an SMTP relay
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     netmail.Address
}

// NewSMTPSender creates a sender for the configured relay. The username is
// the From address unless one is set.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     netmail.Address{Name: cfg.FromName, Address: from},
	}
}

// Send dials the relay and delivers msg. The context deadline bounds the
// whole exchange.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	// Port 465 speaks TLS from the first byte.
	if s.port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: s.host})
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && s.port != 465 {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}

	if s.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.username, s.password, s.host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}
		}
	}

	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(s.compose(msg, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) compose(msg Message, now time.Time) []byte {
	var buf bytes.Buffer
	domainPart := s.host
	if at := strings.LastIndex(s.from.Address, "@"); at >= 0 {
		domainPart = s.from.Address[at+1:]
	}

	headers := [][2]string{
		{"From", s.from.String()},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", "<" + msg.ID + "@" + domainPart + ">"},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
	}
	for _, h := range headers {
		buf.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTML, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

// LogSender records messages in the log instead of sending them
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the recipient and subject and always succeeds
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("Email not sent, SMTP disabled",
		zap.String("email_id", msg.ID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
