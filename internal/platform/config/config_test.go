package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testEnv(overrides map[string]string) map[string]string {
	values := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "apexflow-test",
		"API_AUTH_SIGNING_SECRET":  "plain-secret",
	}
	for key, value := range overrides {
		values[key] = value
	}
	return values
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(testEnv(nil)),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Fatalf("expected default token ttl, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.PubSub.ProjectID != "apexflow-test" {
		t.Fatalf("expected pubsub project to default to firestore project, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "order-events" {
		t.Fatalf("unexpected topic %q", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.Fulfillment.StrictQuantities {
		t.Fatalf("expected lenient fulfillment validation by default")
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{}),
	)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "Auth.SigningSecret": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadResolvesSecretReference(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/p/secrets/signing/versions/latest" {
			return "", errors.New("unexpected ref")
		}
		return "resolved-secret", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(testEnv(map[string]string{
			"API_AUTH_SIGNING_SECRET": "sm://projects/p/secrets/signing/versions/latest",
		})),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.SigningSecret != "resolved-secret" {
		t.Fatalf("expected resolved secret, got %q", cfg.Auth.SigningSecret)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(testEnv(map[string]string{
			"API_AUTH_SIGNING_SECRET": "secret://projects/p/secrets/signing/versions/1",
		})),
		WithSecretResolver(resolver),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://projects/p/secrets/signing/versions/1" {
		t.Fatalf("unexpected ref %q", secretErr.Ref)
	}
}

func TestLoadEnvMapPrecedence(t *testing.T) {
	t.Setenv("API_SERVER_PORT", "9000")

	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithEnvMap(testEnv(map[string]string{
			"API_SERVER_PORT": "9100",
		})),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("expected env map to win, got %q", cfg.Server.Port)
	}
}
