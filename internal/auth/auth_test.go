package auth

import "testing"

func TestCheckPasswordPlainFallback(t *testing.T) {
	if !CheckPassword("P@ssw0rd", "", "P@ssw0rd") {
		t.Fatal("matching plain password must pass")
	}
	if CheckPassword("wrong", "", "P@ssw0rd") {
		t.Fatal("wrong plain password must fail")
	}
}

func TestCheckPasswordHashPrecedence(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !CheckPassword("secret", hash, "other") {
		t.Fatal("matching hashed password must pass")
	}
	// A configured hash wins even when the plain fallback matches.
	if CheckPassword("other", hash, "other") {
		t.Fatal("plain fallback must be ignored when a hash is set")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := NewSessionToken("secret-key")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if !VerifySessionToken("secret-key", token) {
		t.Fatal("freshly issued token must verify")
	}
	if VerifySessionToken("other-key", token) {
		t.Fatal("token must not verify under a different secret")
	}
	if VerifySessionToken("secret-key", "not-a-token") {
		t.Fatal("garbage must not verify")
	}
}
