// Package email delivers notifications through an SMTP relay.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/pkg/config"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender is the SMTP channel adapter.
type Sender struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

// New builds a sender for cfg.
func New(cfg config.SMTPConfig) (*Sender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host and from address required")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Sender{
		addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		host:     cfg.Host,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

func (s *Sender) Name() string { return "smtp" }

func (s *Sender) Send(ctx context.Context, recipient dispatch.Recipient, content dispatch.Content) dispatch.SendResult {
	if err := ctx.Err(); err != nil {
		return dispatch.Failed(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "smtp send aborted"))
	}
	if !strings.Contains(recipient.Address, "@") {
		return dispatch.Failed(pkgerrors.New(pkgerrors.CodeValidation, "invalid email address"))
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	msg, err := buildMessage(s.from, recipient.Address, messageID, s.now(), content)
	if err != nil {
		return dispatch.Failed(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build email"))
	}

	if err := s.sendMail(s.addr, s.auth, s.from, []string{recipient.Address}, msg); err != nil {
		return dispatch.Failed(classify(err))
	}
	return dispatch.SendResult{Success: true, ProviderMessageID: messageID}
}

// classify treats 5xx replies as permanent rejections and everything else,
// including 4xx and network errors, as transient.
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 421 || protoErr.Code == 450 || protoErr.Code == 451 || protoErr.Code == 452:
			return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "smtp relay deferred message")
		case protoErr.Code >= 500:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "smtp relay rejected message")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "smtp send failed")
}

func buildMessage(from, to, messageID string, now time.Time, content dispatch.Content) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", content.Subject))
	header("Date", now.UTC().Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")

	if content.HTML == "" {
		header("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(content.Text)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header("Content-Type", fmt.Sprintf(`multipart/alternative; boundary="%s"`, writer.Boundary()))
	buf.WriteString("\r\n")

	for _, part := range []struct{ mimeType, value string }{
		{"text/plain", content.Text},
		{"text/html", content.HTML},
	} {
		w, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type": {part.mimeType + `; charset="utf-8"`},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.value)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
