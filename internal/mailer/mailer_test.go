package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"testing"
)

// TestSMTPMailer_SendLoginLink は送信パラメータの組み立てをテストする。
func TestSMTPMailer_SendLoginLink(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	m := NewSMTPMailer(Config{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "noreply",
		Password: "secret",
		From:     "noreply@example.com",
	})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotAuth = a
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := m.SendLoginLink(context.Background(), "aluno@id.uff.br", "https://example.com/auth/verify?token=abc")
	if err != nil {
		t.Fatalf("SendLoginLink returned error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want smtp.example.com:587", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected PLAIN auth when username is set")
	}
	if gotFrom != "noreply@example.com" {
		t.Errorf("from = %q, want noreply@example.com", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "aluno@id.uff.br" {
		t.Errorf("to = %v, want [aluno@id.uff.br]", gotTo)
	}
	if !strings.Contains(string(gotMsg), "https://example.com/auth/verify?token=abc") {
		t.Error("message should contain the login link")
	}
	if !strings.Contains(string(gotMsg), "Subject: ") {
		t.Error("message should contain a subject header")
	}
}

// TestSMTPMailer_NoAuthWithoutUsername はユーザー名未設定時に認証なしで送信することをテストする。
func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "localhost", Port: 1025, From: "noreply@example.com"})

	var gotAuth smtp.Auth
	called := false
	m.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		called = true
		gotAuth = a
		return nil
	}

	if err := m.SendLoginLink(context.Background(), "aluno@uff.br", "https://example.com/x"); err != nil {
		t.Fatalf("SendLoginLink returned error: %v", err)
	}
	if !called {
		t.Fatal("send should be called")
	}
	if gotAuth != nil {
		t.Error("expected no auth when username is empty")
	}
}

// TestSMTPMailer_SendFailure は送信失敗がラップされて返ることをテストする。
func TestSMTPMailer_SendFailure(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		return fmt.Errorf("connection refused")
	}

	err := m.SendLoginLink(context.Background(), "aluno@uff.br", "https://example.com/x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should wrap the cause, got %v", err)
	}
}

// TestSMTPMailer_CanceledContext はキャンセル済みcontextで送信しないことをテストする。
func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	called := false
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.SendLoginLink(ctx, "aluno@uff.br", "https://example.com/x"); err == nil {
		t.Fatal("expected context error")
	}
	if called {
		t.Error("send should not be called with canceled context")
	}
}
