// Package ucp implements the merchant-side core of the Universal Commerce
// Protocol (UCP): checkout-session lifecycle management backed by a host
// cart system, plus the signing-key machinery needed to publish discovery
// manifests and sign outgoing webhooks.
//
// # Checkout sessions
//
// Use [NewSessionManager] with your [CartGateway] and [CartConverter]
// implementations and a [SessionStore]. The manager owns session ids,
// status derivation, and lifecycle transitions; everything else in a
// session snapshot is a projection of the live cart. Open sessions are
// rebuilt from the cart on every read, terminal sessions are frozen.
//
// # Signing keys
//
// The keys subpackage manages ES256 key pairs with private material
// encrypted at rest. [NewManifestGenerator] publishes the active public
// keys as JWKs in the discovery manifest and [NewWebhookSigner] signs
// outgoing webhook payloads with the current key.
//
// # Storage
//
// [SessionStore] is the persistence contract; the postgres subpackage
// provides the production implementation with optimistic revision checks,
// and [NewCachedSessionStore] adds a process-local read cache on top.
package ucp
