package tenancy

import (
	"errors"
	"strings"
	"testing"
)

func TestFromClaim(t *testing.T) {
	t.Run("uuid claim", func(t *testing.T) {
		ns, err := FromClaim("550e8400-e29b-41d4-a716-446655440000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Namespace("tenant_550e8400_e29b_41d4_a716_446655440000")
		if ns != want {
			t.Fatalf("got %q, want %q", ns, want)
		}
	})

	t.Run("simple name", func(t *testing.T) {
		ns, err := FromClaim("acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ns != "tenant_acme" {
			t.Fatalf("got %q", ns)
		}
	})

	t.Run("empty claim fails closed", func(t *testing.T) {
		_, err := FromClaim("")
		if !errors.Is(err, ErrMissingTenantClaim) {
			t.Fatalf("expected ErrMissingTenantClaim, got %v", err)
		}
	})

	t.Run("whitespace claim fails closed", func(t *testing.T) {
		_, err := FromClaim("   ")
		if !errors.Is(err, ErrMissingTenantClaim) {
			t.Fatalf("expected ErrMissingTenantClaim, got %v", err)
		}
	})

	t.Run("injection attempt", func(t *testing.T) {
		_, err := FromClaim("x; DROP SCHEMA public")
		if !errors.Is(err, ErrInvalidNamespace) {
			t.Fatalf("expected ErrInvalidNamespace, got %v", err)
		}
	})

	t.Run("too long", func(t *testing.T) {
		_, err := FromClaim(strings.Repeat("a", 80))
		if !errors.Is(err, ErrInvalidNamespace) {
			t.Fatalf("expected ErrInvalidNamespace, got %v", err)
		}
	})
}

func TestValidateIdempotent(t *testing.T) {
	ns, err := FromClaim("acme-clinic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A namespace that derived successfully must validate again, every time.
	for i := 0; i < 3; i++ {
		if err := Validate(string(ns)); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"tenant_acme", "tenant_a1", "_private", "shared"}
	for _, ns := range valid {
		if err := Validate(ns); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", ns, err)
		}
	}

	invalid := []string{"", "1tenant", "tenant-acme", "tenant acme", "tenant;drop"}
	for _, ns := range invalid {
		if err := Validate(ns); !errors.Is(err, ErrInvalidNamespace) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidNamespace", ns, err)
		}
	}
}

func TestResolver(t *testing.T) {
	r, err := NewResolver("default", []string{"/health", "/metrics"})
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}

	t.Run("public path ignores claim", func(t *testing.T) {
		ns, err := r.Resolve("/health", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ns != "tenant_default" {
			t.Fatalf("got %q", ns)
		}
	})

	t.Run("private path resolves claim", func(t *testing.T) {
		ns, err := r.Resolve("/api/v1/patients", "acme")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ns != "tenant_acme" {
			t.Fatalf("got %q", ns)
		}
	})

	t.Run("private path without claim fails closed", func(t *testing.T) {
		_, err := r.Resolve("/api/v1/patients", "")
		if !errors.Is(err, ErrMissingTenantClaim) {
			t.Fatalf("expected ErrMissingTenantClaim, got %v", err)
		}
	})

	t.Run("malformed claim fails closed", func(t *testing.T) {
		_, err := r.Resolve("/api/v1/patients", "bad claim!")
		if !errors.Is(err, ErrInvalidNamespace) {
			t.Fatalf("expected ErrInvalidNamespace, got %v", err)
		}
	})

	t.Run("invalid default tenant rejected at construction", func(t *testing.T) {
		if _, err := NewResolver("not valid!", nil); err == nil {
			t.Fatal("expected error for invalid default tenant")
		}
	})
}

func TestConcurrentResolutionIsolated(t *testing.T) {
	r, err := NewResolver("default", nil)
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}

	claims := []string{"alpha", "beta", "gamma", "delta"}
	done := make(chan error, len(claims)*50)
	for _, claim := range claims {
		claim := claim
		for i := 0; i < 50; i++ {
			go func() {
				ns, err := r.Resolve("/api/v1/patients", claim)
				if err != nil {
					done <- err
					return
				}
				if ns != Namespace("tenant_"+claim) {
					done <- errors.New("resolved wrong namespace: " + string(ns))
					return
				}
				done <- nil
			}()
		}
	}
	for i := 0; i < len(claims)*50; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
