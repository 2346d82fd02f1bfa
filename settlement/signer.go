package settlement

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

// Signer turns settlement requests into signed envelopes: a COSE_Sign1
// (ES256) message over the CBOR-encoded claim.
type Signer struct {
	signer    cose.Signer
	encMode   cbor.EncMode
	publicPEM string
	now       func() time.Time
}

func NewSigner(keyManager *KeyManager) (*Signer, error) {
	signer, err := cose.NewSigner(cose.AlgorithmES256, keyManager.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}
	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	publicPEM, err := keyManager.PublicKeyPEM()
	if err != nil {
		return nil, err
	}
	return &Signer{
		signer:    signer,
		encMode:   encMode,
		publicPEM: publicPEM,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sign produces the envelope for req.
func (s *Signer) Sign(req core.SettlementRequest) (*api.SettlementEnvelope, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	signedAt := s.now()
	claim := api.NewSettlementClaim(req, nonce, signedAt)

	payload, err := s.encMode.Marshal(claim)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement claim: %w", err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
		},
	}
	signed, err := cose.Sign1(rand.Reader, s.signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sign settlement claim: %w", err)
	}

	return &api.SettlementEnvelope{
		Type:         api.EnvelopeType,
		AuctionID:    req.AuctionID,
		COSEBase64:   api.SettlementCOSE(signed).EncodeBase64(),
		PublicKey:    s.publicPEM,
		KeyAlgorithm: api.KeyAlgorithm,
		SignedAt:     signedAt,
	}, nil
}

// generateNonce returns 256 bits of crypto/rand entropy, hex encoded.
func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
