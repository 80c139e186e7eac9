package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	const secret = "test-secret"
	tm := NewTokenManager(secret)

	base := Claims{
		SubjectID:   "user-1",
		RoleID:      "role-regional",
		RoleName:    domain.RoleRegional,
		InstituteID: "reg-b",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	t.Run("accepts a valid token", func(t *testing.T) {
		claims, err := tm.ParseToken(signToken(t, secret, jwt.SigningMethodHS256, base))
		if err != nil {
			t.Fatalf("ParseToken: %v", err)
		}
		if claims.SubjectID != "user-1" || claims.InstituteID != "reg-b" {
			t.Fatalf("claims = %+v", claims)
		}
		if claims.RoleName != domain.RoleRegional {
			t.Fatalf("role = %s, want REGIONAL", claims.RoleName)
		}
	})

	t.Run("rejects a foreign secret", func(t *testing.T) {
		if _, err := tm.ParseToken(signToken(t, "other-secret", jwt.SigningMethodHS256, base)); err == nil {
			t.Fatal("expected signature error")
		}
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired := base
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		if _, err := tm.ParseToken(signToken(t, secret, jwt.SigningMethodHS256, expired)); err == nil {
			t.Fatal("expected expiry error")
		}
	})

	t.Run("rejects unexpected signing methods", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, base).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		if _, err := tm.ParseToken(token); err == nil {
			t.Fatal("expected signing method error")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := tm.ParseToken("not-a-token"); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
