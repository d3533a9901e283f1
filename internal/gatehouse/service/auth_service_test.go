package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sejink/gatehouse/internal/gatehouse/service"
	"github.com/sejink/gatehouse/internal/gatehouse/store/memory"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

// The login scheme accepts a password equal to the identifier, or whose MD5
// equals the identifier.  Weak on purpose: existing clients depend on it.
func TestLogin_AcceptsBothWeakForms(t *testing.T) {
	// Pick an ID that is itself an MD5 digest so the second form is
	// exercisable: md5("secret") = 5ebe2294ecd0e0f08eab7690d2a6ee69.
	id := "5ebe2294ecd0e0f08eab7690d2a6ee69"
	p := types.Principal{ID: id, APIKey: service.GenerateAPIKey(id), Flag: "y"}
	svc := service.NewAuthService(memory.NewPrincipalStore([]types.Principal{p}), nil)

	// Form 1: password equals the identifier.
	key, err := svc.Login(context.Background(), id, id)
	if err != nil {
		t.Fatalf("Login(password=id): %v", err)
	}
	if key != p.APIKey {
		t.Errorf("expected api key %q, got %q", p.APIKey, key)
	}

	// Form 2: md5(password) equals the identifier.
	key, err = svc.Login(context.Background(), id, "secret")
	if err != nil {
		t.Fatalf("Login(md5(password)=id): %v", err)
	}
	if key != p.APIKey {
		t.Errorf("expected api key %q, got %q", p.APIKey, key)
	}
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	p := types.Principal{ID: "alice", APIKey: service.GenerateAPIKey("alice"), Flag: "y"}
	svc := service.NewAuthService(memory.NewPrincipalStore([]types.Principal{p}), nil)

	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, service.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := service.NewAuthService(memory.NewPrincipalStore(nil), nil)

	if _, err := svc.Login(context.Background(), "nobody", "nobody"); !errors.Is(err, service.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestGenerateAPIKey_IsLowercaseHexMD5(t *testing.T) {
	// md5("alice") — must stay wire-compatible with stored credentials.
	if got := service.GenerateAPIKey("alice"); got != "6384e2b2184bcbf58eccf10ca7a6563c" {
		t.Errorf("GenerateAPIKey(alice) = %q", got)
	}
}
