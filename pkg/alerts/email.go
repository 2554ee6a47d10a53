package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// EmailConfig holds SMTP submission settings.
type EmailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	Timeout   time.Duration
}

// EmailNotifier submits alerts over SMTP with mandatory STARTTLS and PLAIN auth.
type EmailNotifier struct {
	cfg  EmailConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewEmailNotifier creates an SMTP notifier. From defaults to the username.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	n := &EmailNotifier{cfg: cfg}
	n.send = n.dialAndSend
	return n
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, msg Message) error {
	m, err := e.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := e.send(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (e *EmailNotifier) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", e.cfg.From, err)
	}
	if err := m.To(e.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", e.cfg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (e *EmailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	client, err := mail.NewClient(e.cfg.Host,
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(e.cfg.Username),
		mail.WithPassword(e.cfg.Password),
		mail.WithTimeout(e.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}
