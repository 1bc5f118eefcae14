package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "kograph-test",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "kograph-test" {
		t.Fatalf("firestore project should default to firebase project, got %q", cfg.Firestore.ProjectID)
	}
	if cfg.Delivery.ProjectID != "kograph-test" {
		t.Fatalf("delivery project should default to firebase project, got %q", cfg.Delivery.ProjectID)
	}
	if cfg.Orders.VerifiedOrderStatus != "processing" {
		t.Fatalf("unexpected verified order status %q", cfg.Orders.VerifiedOrderStatus)
	}
	if cfg.Telegram.APIBaseURL != "https://api.telegram.org" {
		t.Fatalf("unexpected telegram base url %q", cfg.Telegram.APIBaseURL)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != "https://accounts.google.com" {
		t.Fatalf("unexpected oidc issuers %v", cfg.Security.OIDC.Issuers)
	}
}

func TestLoadRejectsUnknownVerifiedStatus(t *testing.T) {
	env := baseEnv()
	env["API_ORDERS_VERIFIED_STATUS"] = "shipped"

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := strings.Join(validationErr.Fields(), ","); !strings.Contains(got, "Orders.VerifiedOrderStatus") {
		t.Fatalf("expected Orders.VerifiedOrderStatus in %q", got)
	}
}

func TestLoadRequiresProject(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{}))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadResolvesTelegramTokenSecret(t *testing.T) {
	env := baseEnv()
	env["API_TELEGRAM_BOT_TOKEN"] = "secret://projects/kograph-test/secrets/telegram-bot-token"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if !strings.HasPrefix(ref, "secret://") {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "123456:resolved-token", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.BotToken != "123456:resolved-token" {
		t.Fatalf("token not resolved, got %q", cfg.Telegram.BotToken)
	}
}

func TestLoadNormalizesSMReferences(t *testing.T) {
	env := baseEnv()
	env["API_TELEGRAM_BOT_TOKEN"] = "sm://projects/kograph-test/secrets/telegram-bot-token"

	var seen string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		seen = ref
		return "token", nil
	})

	if _, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env), WithSecretResolver(resolver)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !strings.HasPrefix(seen, "secret://") {
		t.Fatalf("sm:// reference not normalised, resolver saw %q", seen)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["API_TELEGRAM_BOT_TOKEN"] = "secret://projects/p/secrets/missing"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("access denied")
	})

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env), WithSecretResolver(resolver))

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
}
