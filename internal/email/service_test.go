package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func newCaptureService() (*Service, *[]string) {
	svc := NewService(Config{
		Host:     "smtp.example.com",
		Port:     "587",
		From:     "hello@soulfra.ai",
		FromName: "Soulfra",
	})
	var sent []string
	svc.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		sent = append(sent, string(msg))
		return nil
	}
	return svc, &sent
}

func TestIsConfigured(t *testing.T) {
	if NewService(Config{}).IsConfigured() {
		t.Error("empty config should not be configured")
	}
	svc, _ := newCaptureService()
	if !svc.IsConfigured() {
		t.Error("expected configured service")
	}
}

func TestSendEmail_NotConfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@example.com"}, "hi", "body"); err == nil {
		t.Error("expected error when not configured")
	}
}

func TestSendVerificationEmail(t *testing.T) {
	svc, sent := newCaptureService()

	err := svc.SendVerificationEmail("avery@example.com", "avery", "https://soulfra.ai/verify?token=abc")
	if err != nil {
		t.Fatalf("SendVerificationEmail failed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}

	msg := (*sent)[0]
	for _, want := range []string{
		"Subject: Verify your Soulfra account",
		"Welcome, avery!",
		"https://soulfra.ai/verify?token=abc",
		"multipart/alternative",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendPasswordResetEmail(t *testing.T) {
	svc, sent := newCaptureService()

	err := svc.SendPasswordResetEmail("avery@example.com", "avery", "https://soulfra.ai/reset?token=xyz")
	if err != nil {
		t.Fatalf("SendPasswordResetEmail failed: %v", err)
	}

	msg := (*sent)[0]
	if !strings.Contains(msg, "Subject: Reset your Soulfra password") {
		t.Error("missing subject")
	}
	if !strings.Contains(msg, "https://soulfra.ai/reset?token=xyz") {
		t.Error("missing reset URL")
	}
}

func TestSendDigestEmail(t *testing.T) {
	svc, sent := newCaptureService()

	posts := []DigestPost{
		{Title: "The Mesh Economy", Author: "avery", Brand: "Soulfra Labs", URL: "https://soulfra.ai/posts/pst_1", Excerpt: "How wordmaps turn into ownership."},
		{Title: "Parked No More", Author: "bob", URL: "https://soulfra.ai/posts/pst_2"},
	}
	err := svc.SendDigestEmail("sub@example.com", "https://soulfra.ai/unsubscribe?email=sub%40example.com", posts)
	if err != nil {
		t.Fatalf("SendDigestEmail failed: %v", err)
	}

	msg := (*sent)[0]
	for _, want := range []string{
		"Subject: Soulfra digest: 2 new posts",
		"The Mesh Economy",
		"Soulfra Labs",
		"Parked No More",
		"Unsubscribe",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("digest missing %q", want)
		}
	}
}

func TestSendDigestEmail_Empty(t *testing.T) {
	svc, _ := newCaptureService()
	if err := svc.SendDigestEmail("sub@example.com", "https://soulfra.ai/unsubscribe", nil); err == nil {
		t.Error("expected error for empty digest")
	}
}
