package services_test

import (
	"context"
	"errors"
	"testing"

	"pingme/internal/models"
	"pingme/internal/services"
	"pingme/internal/store"
	"pingme/internal/store/memory"
)

func TestRegisterIsRepeatSafe(t *testing.T) {
	svc := services.NewUserService(memory.NewUserStore(), nil)
	ctx := context.Background()

	req := models.RegisterRequest{Username: "anand", Password: "123456", DisplayName: "Anand"}
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.PasswordHash == req.Password {
		t.Fatal("password stored in the clear")
	}

	// Re-registering the same username maps to ErrUserExists so callers
	// (signup handler, seeding) can skip instead of fail.
	if _, err := svc.Register(ctx, req); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("duplicate Register: err = %v, want ErrUserExists", err)
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	svc := services.NewUserService(memory.NewUserStore(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, models.RegisterRequest{Username: "anand", Password: "123456"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := svc.Login(ctx, models.LoginRequest{Username: "anand", Password: "123456"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Token == "" || res.Username != "anand" {
		t.Fatalf("Login response %+v", res)
	}

	if _, err := svc.Login(ctx, models.LoginRequest{Username: "anand", Password: "wrong"}); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, models.LoginRequest{Username: "nobody", Password: "123456"}); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}
