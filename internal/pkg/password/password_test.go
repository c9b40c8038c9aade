package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := Hash("s3cret-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !Verify("s3cret-password", hash) {
		t.Fatalf("expected verify to succeed for matching password")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	t.Parallel()

	hash, err := Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if Verify("battery-staple", hash) {
		t.Fatalf("expected verify to fail for wrong password")
	}
}

func TestHashAndVerify_LongPassword(t *testing.T) {
	t.Parallel()

	// bcrypt 原生只看前 72 字节，预哈希后超长密码必须仍能区分
	long := strings.Repeat("a", 300)
	hash, err := Hash(long)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify(long, hash) {
		t.Fatalf("expected long password to round-trip")
	}
	if Verify(long+"b", hash) {
		t.Fatalf("expected suffix change beyond 72 bytes to be rejected")
	}
}

func TestVerify_MalformedDigest(t *testing.T) {
	t.Parallel()

	if Verify("whatever", "not-a-bcrypt-digest") {
		t.Fatalf("expected verify to fail for malformed digest")
	}
	if Verify("whatever", "") {
		t.Fatalf("expected verify to fail for empty digest")
	}
}
