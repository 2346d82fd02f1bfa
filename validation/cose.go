package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/dynauction/api"
)

// ParsePublicKeyPEM decodes a PKIX PEM block holding an ECDSA P-256 key.
func ParsePublicKeyPEM(pemData string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecdsaKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	if ecdsaKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("public key must use curve P-256")
	}
	return ecdsaKey, nil
}

// VerifyCOSESignature verifies a base64 COSE_Sign1 settlement message
// against a PEM public key. The message must be ES256 signed with an
// empty external AAD.
func VerifyCOSESignature(coseB64 api.SettlementCOSEBase64, publicKeyPEM string) error {
	coseBytes, err := coseB64.Decode()
	if err != nil {
		return fmt.Errorf("decode COSE bytes: %w", err)
	}

	publicKey, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return err
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return fmt.Errorf("read COSE algorithm: %w", err)
	}
	if alg != cose.AlgorithmES256 {
		return fmt.Errorf("unexpected COSE algorithm %v, want ES256", alg)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}
	return nil
}
