package auth

import (
	"strings"
	"testing"
	"time"
)

func issue(t *testing.T, secret []byte, exp time.Time) string {
	t.Helper()
	token, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "member",
		JTI:  "jti-1",
		Exp:  exp.Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")
	token := issue(t, secret, time.Now().Add(time.Hour))

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "member" || claims.JTI != "jti-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejections(t *testing.T) {
	secret := []byte("secret")
	valid := issue(t, secret, time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"expired", secret, issue(t, secret, time.Now().Add(-time.Minute))},
		{"wrong secret", []byte("other"), valid},
		{"no separator", secret, strings.ReplaceAll(valid, ".", "_")},
		{"tampered payload", secret, "x" + valid},
		{"tampered signature", secret, valid[:len(valid)-2]},
		{"empty", secret, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); err == nil {
				t.Error("token accepted")
			}
		})
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("rt-abc") != HashToken("rt-abc") {
		t.Error("same token hashed differently")
	}
	if HashToken("rt-abc") == HashToken("rt-abd") {
		t.Error("different tokens collide")
	}
}
