package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/spec-kit/helpdesk-sla/internal/config"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, auth sasl.Client, from string, to []string, r io.Reader) error

// EmailChannel sends plain-text mail through an SMTP relay.
type EmailChannel struct {
	addr string
	from *mail.Address
	auth sasl.Client
	send SendFunc
	now  func() time.Time
}

// NewEmailChannel builds a channel from notification settings. PLAIN auth is used only
// when a username is configured.
func NewEmailChannel(cfg config.NotificationConfig) (*EmailChannel, error) {
	from, err := mail.ParseAddress(cfg.EmailFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.EmailFrom, err)
	}
	var auth sasl.Client
	if cfg.SMTPUsername != "" {
		auth = sasl.NewPlainClient("", cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return &EmailChannel{
		addr: cfg.SMTPAddr(),
		from: from,
		auth: auth,
		send: smtp.SendMail,
		now:  time.Now,
	}, nil
}

// WithSender replaces the SMTP transport.
func (c *EmailChannel) WithSender(send SendFunc) *EmailChannel {
	c.send = send
	return c
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	raw, err := ComposeEmail(c.from, to, msg, c.now())
	if err != nil {
		return err
	}
	if err := c.send(c.addr, c.auth, c.from.Address, []string{to.Address}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.Address, err)
	}
	return nil
}

// ComposeEmail renders msg as an RFC 5322 message.
func ComposeEmail(from, to *mail.Address, msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("write mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}
