package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/settlement"
)

func testRequest() core.SettlementRequest {
	return core.SettlementRequest{
		AuctionID:    "auction-1",
		Seller:       "seller",
		PaymentToken: "USDC",
		Winners: []core.SettlementWinner{
			{Bidder: "alice", Amount: decimal.RequireFromString("90")},
			{Bidder: "bob", Amount: decimal.RequireFromString("80")},
		},
		TotalPayout: decimal.RequireFromString("170"),
		Fee:         decimal.RequireFromString("4.25"),
		Reason:      core.ReasonTimeExpired,
		RequestedAt: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	}
}

func signedEnvelope(t *testing.T) (*api.SettlementEnvelope, *settlement.KeyManager) {
	t.Helper()
	km, err := settlement.NewKeyManager()
	assert.NoError(t, err)
	signer, err := settlement.NewSigner(km)
	assert.NoError(t, err)
	env, err := signer.Sign(testRequest())
	assert.NoError(t, err)
	return env, km
}

// forgeEnvelope signs an arbitrary claim with a fresh key, the way a
// misbehaving signer would.
func forgeEnvelope(t *testing.T, claim api.SettlementClaim) *api.SettlementEnvelope {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	assert.NoError(t, err)

	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	assert.NoError(t, err)
	payload, err := encMode.Marshal(claim)
	assert.NoError(t, err)

	headers := cose.Headers{Protected: cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmES256}}
	signed, err := cose.Sign1(rand.Reader, signer, headers, payload, nil)
	assert.NoError(t, err)

	publicPEM, err := settlement.PublicKeyToPEM(&key.PublicKey)
	assert.NoError(t, err)
	return &api.SettlementEnvelope{
		Type:         api.EnvelopeType,
		AuctionID:    claim.AuctionID,
		COSEBase64:   api.SettlementCOSE(signed).EncodeBase64(),
		PublicKey:    publicPEM,
		KeyAlgorithm: api.KeyAlgorithm,
		SignedAt:     claim.SignedAt,
	}
}
