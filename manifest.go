package ucp

import (
	"context"
	"fmt"
	"strings"

	"github.com/aeqet/ucp/keys"
)

// Version is the UCP protocol version this module implements.
const Version = "2026-01-01"

// ManifestConfig carries the host-specific values published in the
// discovery manifest.
type ManifestConfig struct {
	// BaseURL is the public origin of the host store, e.g.
	// "https://shop.example.com".
	BaseURL string
	// APIEndpoint is the path under BaseURL where checkout operations are
	// served.
	APIEndpoint string
	// PaymentHandlers lists the payment handler descriptors the host
	// advertises.
	PaymentHandlers []PaymentHandler
}

// Manifest is the discovery document agents fetch to learn the host's
// capabilities, endpoints, and signing keys.
type Manifest struct {
	UCP ManifestUCP `json:"ucp"`
}

// ManifestUCP defines model for the ucp envelope of the manifest.
type ManifestUCP struct {
	Version      string                     `json:"version"`
	Services     map[string]ManifestService `json:"services"`
	Capabilities []Capability               `json:"capabilities"`
	Payment      *ManifestPayment           `json:"payment,omitempty"`
	SigningKeys  []keys.JWK                 `json:"signing_keys"`
}

// ManifestService describes a single service endpoint.
type ManifestService struct {
	Version  string `json:"version"`
	Endpoint string `json:"endpoint"`
	Spec     string `json:"spec,omitempty"`
}

// ManifestPayment groups the advertised payment handlers.
type ManifestPayment struct {
	Handlers []PaymentHandler `json:"handlers"`
}

// ManifestGenerator assembles discovery manifests from static host
// configuration plus the live set of active signing keys.
type ManifestGenerator struct {
	cfg     ManifestConfig
	manager *keys.Manager
}

// NewManifestGenerator builds a generator. The key manager may be nil when
// the host publishes no signing keys.
func NewManifestGenerator(cfg ManifestConfig, manager *keys.Manager) (*ManifestGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, NewInvalidArgumentError("manifest base URL is required", WithOffendingParam("base_url"))
	}
	return &ManifestGenerator{cfg: cfg, manager: manager}, nil
}

// Generate builds the manifest document.
func (g *ManifestGenerator) Generate(ctx context.Context) (*Manifest, error) {
	endpoint := g.cfg.APIEndpoint
	if endpoint == "" {
		endpoint = "/ucp/v1/checkout_sessions"
	}
	doc := &Manifest{
		UCP: ManifestUCP{
			Version: Version,
			Services: map[string]ManifestService{
				"dev.ucp.shopping.checkout": {
					Version:  Version,
					Endpoint: joinURL(g.cfg.BaseURL, endpoint),
				},
			},
			Capabilities: []Capability{
				{Name: "dev.ucp.shopping.checkout", Version: Version},
			},
			SigningKeys: []keys.JWK{},
		},
	}
	if len(g.cfg.PaymentHandlers) > 0 {
		doc.UCP.Payment = &ManifestPayment{Handlers: g.cfg.PaymentHandlers}
	}
	if g.manager != nil {
		jwks, err := g.manager.GetActivePublicKeysAsJWK(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect signing keys: %w", err)
		}
		doc.UCP.SigningKeys = jwks
	}
	return doc, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
