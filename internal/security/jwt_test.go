package security_test

import (
	"testing"
	"time"

	"github.com/Rrens/chat-memory/internal/security"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	accountID := uuid.New()

	token, err := manager.GenerateAccessToken(accountID)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	if token == "" {
		t.Fatal("access token is empty")
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("failed to validate access token: %v", err)
	}

	if claims.AccountID != accountID {
		t.Errorf("account ID mismatch: got %v, want %v", claims.AccountID, accountID)
	}
	if claims.Subject != accountID.String() {
		t.Errorf("subject mismatch: got %v", claims.Subject)
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	if _, err := manager.ValidateAccessToken("invalid-token"); err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	if _, err := manager.ValidateAccessToken(""); err == nil {
		t.Error("expected error for empty token, got nil")
	}

	other := security.NewJWTManager("different-secret-key-32-chars!!", 15*time.Minute)
	token, _ := other.GenerateAccessToken(uuid.New())
	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}
}

func TestJWTManager_Expired(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", -time.Minute)

	token, err := manager.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestJWTManager_MissingAccount(t *testing.T) {
	secret := "test-secret-key-with-32-chars!!"
	manager := security.NewJWTManager(secret, time.Minute)

	claims := security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chat-memory",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for token without account, got nil")
	}
}
