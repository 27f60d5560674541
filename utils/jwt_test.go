package utils

import (
	"testing"
	"time"
)

const testSecret = "test-secret-key"

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("user-123", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Fatalf("want user-123, got %q", claims.UserID)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-123", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ValidateJWT(token, "other-secret"); err == nil {
		t.Fatal("wrong secret must fail validation")
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT("user-123", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ValidateJWT(token, testSecret); err == nil {
		t.Fatal("expired token must fail validation")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", ""},
		{"Basic abc", ""},
		{"", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := ExtractTokenFromHeader(tc.header); got != tc.want {
			t.Fatalf("ExtractTokenFromHeader(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
