package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"golang.org/x/time/rate"

	"kuex/internal/adapters/observability"
)

// SMTP sends transactional mail over plain SMTP with a client-side rate
// limiter so a burst of signups cannot flood the relay. With no credentials
// configured the mailer reports itself disabled and auth flows fall back to
// debug payloads.
type SMTP struct {
	addr     string // host:port
	user     string
	pass     string
	fromName string
	rl       *rate.Limiter
}

func New(host string, port int, user, pass, fromName string, perSecond int) *SMTP {
	if perSecond <= 0 {
		perSecond = 2
	}
	return &SMTP{
		addr:     fmt.Sprintf("%s:%d", host, port),
		user:     user,
		pass:     pass,
		fromName: fromName,
		rl:       rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (m *SMTP) Enabled() bool { return m.user != "" && m.pass != "" }

func (m *SMTP) SendVerificationCode(ctx context.Context, to, code string) error {
	subject := fmt.Sprintf("[%s] email verification code", m.fromName)
	body := fmt.Sprintf("<b>%s</b>", code)
	return m.send(ctx, "verification", to, subject, body)
}

func (m *SMTP) SendPasswordReset(ctx context.Context, to, link string) error {
	subject := fmt.Sprintf("[%s] password reset request", m.fromName)
	body := fmt.Sprintf(`Reset link: <a href="%s">%s</a>`, link, link)
	return m.send(ctx, "password_reset", to, subject, body)
}

func (m *SMTP) send(ctx context.Context, kind, to, subject, html string) error {
	if err := m.rl.Wait(ctx); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.fromName, m.user)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	host := m.addr[:strings.LastIndex(m.addr, ":")]
	auth := smtp.PlainAuth("", m.user, m.pass, host)
	if err := smtp.SendMail(m.addr, auth, m.user, []string{to}, []byte(b.String())); err != nil {
		observability.ObserveMail(kind, "failed")
		return err
	}
	observability.ObserveMail(kind, "sent")
	return nil
}
