package service

import "testing"

func TestAdminAuthService_SignAndVerifyToken(t *testing.T) {
	svc := NewAdminAuthService("test-secret", 1)

	token, err := svc.SignToken("operator-1")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != "operator-1" {
		t.Errorf("subject: got %q, want %q", claims.Subject, "operator-1")
	}
}

func TestAdminAuthService_VerifyToken_WrongSecret(t *testing.T) {
	token, err := NewAdminAuthService("secret-a", 1).SignToken("operator-1")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := NewAdminAuthService("secret-b", 1).VerifyToken(token); err == nil {
		t.Error("expected verification to fail with a different signing secret")
	}
}

func TestAdminAuthService_VerifyToken_Malformed(t *testing.T) {
	svc := NewAdminAuthService("test-secret", 1)
	if _, err := svc.VerifyToken("not-a-jwt"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}
