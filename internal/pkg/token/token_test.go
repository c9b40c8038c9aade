package token

import (
	"testing"
	"time"
)

func newTestCodec() *Codec {
	return NewCodec("test-secret", 30*time.Minute, 24*time.Hour)
}

func TestIssueAndVerify_Access(t *testing.T) {
	t.Parallel()

	c := newTestCodec()
	tok, err := c.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	email, ok := c.Verify(tok, TypeAccess)
	if !ok {
		t.Fatalf("expected access token to verify")
	}
	if email != "user@example.com" {
		t.Fatalf("subject mismatch: got %q", email)
	}
}

func TestIssueAndVerify_Refresh(t *testing.T) {
	t.Parallel()

	c := newTestCodec()
	tok, err := c.IssueRefresh("user@example.com")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	email, ok := c.Verify(tok, TypeRefresh)
	if !ok || email != "user@example.com" {
		t.Fatalf("expected refresh token to verify, got (%q, %v)", email, ok)
	}
}

func TestVerify_TypeMismatchRejected(t *testing.T) {
	t.Parallel()

	c := newTestCodec()
	refresh, err := c.IssueRefresh("user@example.com")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	access, err := c.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	verification, err := c.IssueEmailVerification("user@example.com")
	if err != nil {
		t.Fatalf("issue verification: %v", err)
	}

	// Refresh Token 不能冒充 Access Token，反之亦然
	if _, ok := c.Verify(refresh, TypeAccess); ok {
		t.Fatalf("refresh token accepted as access token")
	}
	if _, ok := c.Verify(access, TypeRefresh); ok {
		t.Fatalf("access token accepted as refresh token")
	}
	if _, ok := c.Verify(verification, TypeAccess); ok {
		t.Fatalf("verification token accepted as access token")
	}
	if _, ok := c.Verify(access, TypeEmailVerification); ok {
		t.Fatalf("access token accepted as verification token")
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	// 负 TTL 直接签出已过期的令牌
	c := NewCodec("test-secret", -1*time.Second, 24*time.Hour)
	tok, err := c.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, ok := c.Verify(tok, TypeAccess); ok {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	c := newTestCodec()
	tok, err := c.IssueAccess("user@example.com")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	other := NewCodec("another-secret", 30*time.Minute, 24*time.Hour)
	if _, ok := other.Verify(tok, TypeAccess); ok {
		t.Fatalf("expected token signed with different secret to be rejected")
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := newTestCodec()
	for _, raw := range []string{"", "not.a.jwt", "garbage"} {
		if _, ok := c.Verify(raw, TypeAccess); ok {
			t.Fatalf("expected malformed token %q to be rejected", raw)
		}
	}
}

func TestNewResetToken(t *testing.T) {
	t.Parallel()

	a, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	b, err := NewResetToken()
	if err != nil {
		t.Fatalf("new reset token: %v", err)
	}
	if a == b {
		t.Fatalf("expected reset tokens to differ")
	}
	if len(a) < 40 {
		t.Fatalf("reset token too short: %d", len(a))
	}
}
