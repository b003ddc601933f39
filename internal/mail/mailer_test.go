package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/repairdesk/repair-service/internal/config"
)

func TestSMTPMailerSend(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := NewSMTPMailer(config.EmailConfig{
		Host:        "smtp.example.com",
		Port:        2525,
		Username:    "bot",
		Password:    "pw",
		SenderEmail: "noreply@example.com",
		SenderName:  "Repair Service",
	})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), Message{
		To:       []string{"tech@example.com"},
		Subject:  "維修單已指派",
		HTMLBody: "<p>hello</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	if gotAuth == nil {
		t.Fatal("expected auth when username is set")
	}
	if len(gotTo) != 1 || gotTo[0] != "tech@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: =?utf-8?q?") {
		t.Fatalf("subject should be encoded: %s", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\n<p>hello</p>") {
		t.Fatalf("body should follow headers: %q", gotMsg)
	}
}

func TestSMTPMailerRequiresRecipients(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{Host: "smtp.example.com"})
	if err := m.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Fatal("expected error without recipients")
	}
}
