package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// Email sends messages over SMTP with plain auth.
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string

	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(host string, port int, username, password, from, to string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(_ context.Context, message string) error {
	subject := "VoxBox"
	if idx := strings.IndexByte(message, '\n'); idx > 0 {
		subject = strings.TrimSpace(message[:idx])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", e.to)
	// Q-encode non-ASCII subjects; plain ASCII passes through unchanged.
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(message)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.send(addr, auth, e.from, []string{e.to}, []byte(b.String())); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	return nil
}
