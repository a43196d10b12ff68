package fixtures

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func TestDefaultPool(t *testing.T) {
	p := Default()

	if err := p.Validate(); err != nil {
		t.Fatalf("default pool should be valid: %v", err)
	}
	if len(p.Credentials()) != 4 {
		t.Errorf("expected 4 credentials, got %d", len(p.Credentials()))
	}
	if len(p.FallbackAccounts()) != 3 {
		t.Errorf("expected 3 fallback accounts, got %d", len(p.FallbackAccounts()))
	}
}

func TestRandomCredentialFromPool(t *testing.T) {
	p := Default()
	rng := rand.New(rand.NewSource(1))

	seen := make(map[string]bool)
	for range 200 {
		c, err := p.RandomCredential(rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(DefaultCredentials, c) {
			t.Fatalf("credential %v not from pool", c)
		}
		seen[c.Email] = true
	}
	if len(seen) != len(DefaultCredentials) {
		t.Errorf("expected every credential to be picked, saw %d", len(seen))
	}
}

func TestRandomFallbackAccount(t *testing.T) {
	p := Default()
	rng := rand.New(rand.NewSource(2))

	for range 50 {
		acc, ok := p.RandomFallbackAccount(rng)
		if !ok {
			t.Fatal("expected a fallback account")
		}
		if !slices.Contains(DefaultFallbackAccounts, acc) {
			t.Fatalf("account %s not from pool", acc)
		}
	}
}

func TestEmptyPool(t *testing.T) {
	p := New(nil, nil)
	rng := rand.New(rand.NewSource(3))

	if err := p.Validate(); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool, got %v", err)
	}
	if _, err := p.RandomCredential(rng); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool, got %v", err)
	}
	if _, ok := p.RandomFallbackAccount(rng); ok {
		t.Error("expected no fallback account")
	}
}

func TestPoolCopiesInput(t *testing.T) {
	creds := []Credential{{Email: "a@example.com", Password: "x"}}
	p := New(creds, []string{"1"})

	creds[0].Email = "changed@example.com"
	if p.Credentials()[0].Email != "a@example.com" {
		t.Error("pool should not alias caller slice")
	}
}

func TestValidateEmptyEmail(t *testing.T) {
	p := New([]Credential{{Email: "", Password: "x"}}, nil)
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty email")
	}
}
