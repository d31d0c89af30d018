package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestRenderWelcome(t *testing.T) {
	body, subject, err := Render("welcome", map[string]any{
		"name":              "Maria",
		"plan_name":         "Pastor Anual",
		"next_billing_date": "01/03/2027",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Bem-vindo à COMADEMIG" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Maria") || !strings.Contains(body, "Pastor Anual") {
		t.Fatalf("body missing fields: %s", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render("missing", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "noreply@comademig.org"})
	var gotAddr string
	var gotMsg []byte
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		if a != nil {
			t.Fatalf("expected no auth without username")
		}
		return nil
	}

	if err := p.SendTemplate(context.Background(), []string{"maria@example.com"}, "welcome", map[string]any{"name": "Maria", "subject": "Oi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.local:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if !strings.Contains(string(gotMsg), "Subject: Oi\r\n") {
		t.Fatalf("subject override missing: %s", gotMsg)
	}
}

func TestSMTPSendRequiresRecipient(t *testing.T) {
	if err := NewSMTP(Config{}).Send(context.Background(), nil, "s", "b"); err != ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestDiscardSurfacesUnknownTemplate(t *testing.T) {
	if err := (Discard{}).SendTemplate(context.Background(), nil, "welcome", map[string]any{"name": "Maria"}); err != nil {
		t.Fatalf("expected welcome to render, got %v", err)
	}
	if err := (Discard{}).SendTemplate(context.Background(), nil, "missing", nil); err == nil {
		t.Fatalf("expected unknown template to fail")
	}
}
