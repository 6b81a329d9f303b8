package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// coordinateSize is the byte length of a P-256 coordinate.
const coordinateSize = 32

// JWK is the public half of a signing key in JSON Web Key form, as published
// in discovery manifests.
type JWK struct {
	KID string `json:"kid"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

// Valid reports whether the JWK carries a well-formed P-256 signing key.
// Every field is checked: kid present, kty/crv/use/alg exact, and both
// coordinates 32 bytes of unpadded base64url.
func (k JWK) Valid() bool {
	if k.KID == "" || k.Kty != "EC" || k.Crv != "P-256" || k.Use != "sig" || k.Alg != "ES256" {
		return false
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil || len(x) != coordinateSize {
		return false
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil || len(y) != coordinateSize {
		return false
	}
	return true
}

// PublicKey reconstructs the ECDSA public key from the JWK coordinates.
func (k JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if !k.Valid() {
		return nil, errors.New("keys: malformed JWK")
	}
	x, _ := base64.RawURLEncoding.DecodeString(k.X)
	y, _ := base64.RawURLEncoding.DecodeString(k.Y)
	pub := &ecdsa.PublicKey{Curve: elliptic.P256()}
	pub.X = bigIntFromBytes(x)
	pub.Y = bigIntFromBytes(y)
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("keys: JWK point is not on P-256")
	}
	return pub, nil
}

func bigIntFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// FromECDSAPublicKey encodes a P-256 public key as a JWK. Coordinates are
// left-padded to 32 bytes and base64url-encoded without padding per RFC 7518.
func FromECDSAPublicKey(kid string, pub *ecdsa.PublicKey) (JWK, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return JWK{}, errors.New("keys: public key must be on P-256")
	}
	x := make([]byte, coordinateSize)
	y := make([]byte, coordinateSize)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)
	return JWK{
		KID: kid,
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
		Use: "sig",
		Alg: "ES256",
	}, nil
}

// GenerateKID produces a key id of the form "ucp_<year>_<hex>", where the
// suffix is 8 hex characters of randomness.
func GenerateKID(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("keys: generate kid: %w", err)
	}
	return fmt.Sprintf("ucp_%d_%s", now.UTC().Year(), hex.EncodeToString(suffix)), nil
}

// EncodePrivateKeyPEM renders the private key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("keys: marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM parses a PKCS#8 PEM block back into an ECDSA key.
func ParsePrivateKeyPEM(raw []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("keys: no PEM block in private key material")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("keys: private key is not ECDSA")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("keys: private key is not on P-256")
	}
	return key, nil
}
