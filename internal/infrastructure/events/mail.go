package events

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	mail "github.com/go-mail/mail/v2"

	"scholarflow/internal/bootstrap/config"
	"scholarflow/internal/domain/event"
	"scholarflow/internal/errs"
)

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// MailPublisher mails security events and final decisions to staff.
// Other event types are acknowledged without sending anything.
type MailPublisher struct {
	from   string
	to     []string
	sender mailSender
}

func NewMailPublisher(cfg config.MailNotifyConfig) (*MailPublisher, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify.mail.host and notify.mail.from are required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("notify.mail.to needs at least one recipient")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	d := mail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return newMailPublisher(cfg.From, cfg.To, d), nil
}

func newMailPublisher(from string, to []string, sender mailSender) *MailPublisher {
	return &MailPublisher{from: from, to: append([]string(nil), to...), sender: sender}
}

func (p *MailPublisher) Name() string { return "mail" }

func (p *MailPublisher) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, ok := mailSubject(evt)
	if !ok {
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", p.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", mailBody(evt))

	if err := p.sender.DialAndSend(m); err != nil {
		return errs.Wrapf(err, "send mail for event %d", evt.ID)
	}
	return nil
}

func mailSubject(evt event.Event) (string, bool) {
	switch evt.Type {
	case event.MaliciousFileDetected:
		return fmt.Sprintf("[scholarflow] malicious upload quarantined (%s)", evt.AggregateID), true
	case event.QuarantineFailed:
		return fmt.Sprintf("[scholarflow] SECURITY HOLD: quarantine failed for %s", evt.AggregateID), true
	case event.ScanRetriesExhausted:
		return fmt.Sprintf("[scholarflow] document %s needs manual review", evt.AggregateID), true
	case event.ScanFallbackApplied:
		return fmt.Sprintf("[scholarflow] scan fallback applied to %s", evt.AggregateID), true
	case event.ApplicationFinalized:
		return fmt.Sprintf("[scholarflow] application %s finalized", evt.AggregateID), true
	default:
		return "", false
	}
}

func mailBody(evt event.Event) string {
	keys := make([]string, 0, len(evt.Payload))
	for k := range evt.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s at %s by %s</p><ul>",
		html.EscapeString(string(evt.Type)),
		evt.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		html.EscapeString(evt.Actor),
	)
	for _, k := range keys {
		fmt.Fprintf(&b, "<li><b>%s</b>: %s</li>", html.EscapeString(k), html.EscapeString(fmt.Sprint(evt.Payload[k])))
	}
	b.WriteString("</ul>")
	return b.String()
}
