package auth

import (
	"errors"
	"testing"
	"time"
)

const (
	testSecret = "test-secret"
	testIssuer = "classdesk"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken(testSecret, testIssuer, "user-1", time.Hour, Claims{
		Email:     "alice@example.com",
		Role:      "student",
		TokenType: TokenTypeAccess,
	})
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	claims, err := ParseToken(testSecret, testIssuer, TokenTypeAccess, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.UserID())
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Role != "student" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := NewToken(testSecret, testIssuer, "user-1", -time.Minute, Claims{
		TokenType: TokenTypeAccess,
	})
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken(testSecret, testIssuer, TokenTypeAccess, token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestWrongSecret(t *testing.T) {
	token, err := NewToken(testSecret, testIssuer, "user-1", time.Hour, Claims{
		TokenType: TokenTypeAccess,
	})
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken("other-secret", testIssuer, TokenTypeAccess, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestWrongIssuer(t *testing.T) {
	token, err := NewToken(testSecret, "someone-else", "user-1", time.Hour, Claims{
		TokenType: TokenTypeAccess,
	})
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken(testSecret, testIssuer, TokenTypeAccess, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestMalformedToken(t *testing.T) {
	if _, err := ParseToken(testSecret, testIssuer, TokenTypeAccess, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenTypeMismatch(t *testing.T) {
	reset, err := NewToken(testSecret, testIssuer, "user-1", time.Hour, Claims{
		TokenType: TokenTypeReset,
	})
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken(testSecret, testIssuer, TokenTypeAccess, reset); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("reset as access: err = %v, want ErrWrongTokenType", err)
	}
	if _, err := ParseToken(testSecret, testIssuer, TokenTypeRefresh, reset); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("reset as refresh: err = %v, want ErrWrongTokenType", err)
	}
}
