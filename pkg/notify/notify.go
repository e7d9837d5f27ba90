// Package notify delivers best-effort notifications. Delivery problems are logged and never
// reported to the caller.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Notifier sends a message to a set of recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string)
}

// LogNotifier only logs the notification. It is used when no mail server is configured.
type LogNotifier struct{}

// Notify logs the message.
func (LogNotifier) Notify(_ context.Context, recipients []string, subject, _ string) {
	log.Info().Strs("recipients", recipients).Str("subject", subject).Msg("notification (not sent, no smtp host)")
}

// SMTPConfig describes the mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends one mail per recipient through an SMTP server.
type SMTPNotifier struct {
	cfg      SMTPConfig
	send     sendFunc
	parallel int
}

// NewSMTPNotifier creates an SMTPNotifier for cfg.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail, parallel: 4}
}

func (n *SMTPNotifier) message(to, subject, body string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(b.String())
}

// Notify mails every recipient. A failing recipient does not stop the others.
func (n *SMTPNotifier) Notify(ctx context.Context, recipients []string, subject, body string) {
	if len(recipients) == 0 {
		return
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallel)

	for _, to := range recipients {
		to := to

		g.Go(func() error {
			if ctx.Err() != nil {
				log.Warn().Str("to", to).Err(ctx.Err()).Msg("notification abandoned")

				return nil
			}

			if err := n.send(addr, auth, n.cfg.From, []string{to}, n.message(to, subject, body)); err != nil {
				log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("error sending notification")

				return nil
			}

			log.Debug().Str("to", to).Str("subject", subject).Msg("sent notification")

			return nil
		})
	}

	_ = g.Wait()
}

// Async runs the wrapped notifier on its own goroutine so the caller never waits for
// delivery. Each delivery gets at most Timeout.
type Async struct {
	Inner   Notifier
	Timeout time.Duration
}

// NewAsync wraps inner.
func NewAsync(inner Notifier, timeout time.Duration) *Async {
	return &Async{Inner: inner, Timeout: timeout}
}

// Notify starts the delivery and returns immediately. The request context is not used for the
// delivery, which outlives the request.
func (a *Async) Notify(_ context.Context, recipients []string, subject, body string) {
	recipients = append([]string(nil), recipients...)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("subject", subject).Msg("notifier panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
		defer cancel()

		a.Inner.Notify(ctx, recipients, subject, body)
	}()
}

// New picks the SMTP notifier when a host is configured and the log notifier otherwise,
// wrapped in Async.
func New(cfg SMTPConfig, timeout time.Duration) Notifier {
	if cfg.Host == "" {
		return NewAsync(LogNotifier{}, timeout)
	}

	return NewAsync(NewSMTPNotifier(cfg), timeout)
}
