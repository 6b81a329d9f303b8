package ucp

import (
	"context"
	"testing"
)

func TestManifestGenerator(t *testing.T) {
	t.Parallel()

	manager := newTestKeyManager(t)
	ctx := context.Background()
	rec, err := manager.GenerateKey(ctx, "", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	spec := "https://example.com/handlers/checkmo.json"
	gen, err := NewManifestGenerator(ManifestConfig{
		BaseURL: "https://shop.example.com/",
		PaymentHandlers: []PaymentHandler{
			{ID: "checkmo", Name: "Check / Money order", Version: "1.0", Spec: &spec},
		},
	}, manager)
	if err != nil {
		t.Fatalf("build generator: %v", err)
	}

	doc, err := gen.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.UCP.Version != Version {
		t.Fatalf("unexpected version %q", doc.UCP.Version)
	}
	svc, ok := doc.UCP.Services["dev.ucp.shopping.checkout"]
	if !ok {
		t.Fatalf("checkout service missing: %+v", doc.UCP.Services)
	}
	if svc.Endpoint != "https://shop.example.com/ucp/v1/checkout_sessions" {
		t.Fatalf("unexpected endpoint %q", svc.Endpoint)
	}
	if len(doc.UCP.SigningKeys) != 1 || doc.UCP.SigningKeys[0].KID != rec.KID {
		t.Fatalf("unexpected signing keys %+v", doc.UCP.SigningKeys)
	}
	if doc.UCP.Payment == nil || len(doc.UCP.Payment.Handlers) != 1 {
		t.Fatalf("payment handlers missing: %+v", doc.UCP.Payment)
	}
}

func TestManifestGeneratorWithoutKeys(t *testing.T) {
	t.Parallel()

	gen, err := NewManifestGenerator(ManifestConfig{
		BaseURL:     "https://shop.example.com",
		APIEndpoint: "/api/ucp/checkout",
	}, nil)
	if err != nil {
		t.Fatalf("build generator: %v", err)
	}
	doc, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.UCP.SigningKeys == nil || len(doc.UCP.SigningKeys) != 0 {
		t.Fatalf("expected empty signing keys list, got %+v", doc.UCP.SigningKeys)
	}
	if doc.UCP.Payment != nil {
		t.Fatalf("expected no payment block")
	}
	svc := doc.UCP.Services["dev.ucp.shopping.checkout"]
	if svc.Endpoint != "https://shop.example.com/api/ucp/checkout" {
		t.Fatalf("unexpected endpoint %q", svc.Endpoint)
	}
}

func TestManifestGeneratorRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewManifestGenerator(ManifestConfig{}, nil); CodeOf(err) != CodeInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}
