package email

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/pkg/config"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

func newTestSender(t *testing.T, fn sendMailFunc) *Sender {
	t.Helper()
	s, err := New(config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "alerts@example.com"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	s.sendMail = fn
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestSendBuildsMultipartMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s := newTestSender(t, func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	})

	result := s.Send(context.Background(), dispatch.Recipient{Address: "traveller@example.com"}, dispatch.Content{
		Subject: "Booking confirmed",
		HTML:    "<p>See you soon</p>",
		Text:    "See you soon",
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected relay address %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "traveller@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{"Subject: Booking confirmed", "multipart/alternative", "<p>See you soon</p>", "Message-ID: " + result.ProviderMessageID} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendClassifiesRelayErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want pkgerrors.Code
	}{
		{"mailbox unavailable", &textproto.Error{Code: 550, Msg: "no such user"}, pkgerrors.CodeValidation},
		{"greylisted", &textproto.Error{Code: 451, Msg: "try later"}, pkgerrors.CodeRateLimit},
		{"network", errors.New("dial tcp: connection refused"), pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSender(t, func(string, smtp.Auth, string, []string, []byte) error { return tc.err })
			result := s.Send(context.Background(), dispatch.Recipient{Address: "a@example.com"}, dispatch.Content{Text: "hi"})
			if result.Success {
				t.Fatal("expected failure")
			}
			if result.Code != tc.want {
				t.Fatalf("expected code %s, got %s", tc.want, result.Code)
			}
		})
	}
}

func TestSendRejectsMalformedAddress(t *testing.T) {
	s := newTestSender(t, func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("relay should not be called")
		return nil
	})
	result := s.Send(context.Background(), dispatch.Recipient{Address: "not-an-address"}, dispatch.Content{Text: "hi"})
	if result.Code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation failure, got %+v", result)
	}
}

func TestNewRequiresHost(t *testing.T) {
	if _, err := New(config.SMTPConfig{}); err == nil {
		t.Fatal("expected error without host")
	}
}
