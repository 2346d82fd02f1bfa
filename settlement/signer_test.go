package settlement

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

func TestSignerSign(t *testing.T) {
	signer, km := newTestSigner(t)
	req := testRequest("auction-1")

	env, err := signer.Sign(req)
	assert.NoError(t, err)
	check.Equal(t, api.EnvelopeType, env.Type)
	check.Equal(t, "auction-1", env.AuctionID)
	check.Equal(t, api.KeyAlgorithm, env.KeyAlgorithm)

	coseBytes, err := env.COSEBase64.Decode()
	assert.NoError(t, err)

	var msg cose.Sign1Message
	assert.NoError(t, msg.UnmarshalCBOR(coseBytes))
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, km.PublicKey)
	assert.NoError(t, err)
	check.NoError(t, msg.Verify(nil, verifier))

	claim, err := coseBytes.ParseClaim()
	assert.NoError(t, err)
	check.Equal(t, "auction-1", claim.AuctionID)
	check.Equal(t, "150.000000", claim.TotalPayout)
	check.Equal(t, "3.750000", claim.Fee)
	check.Equal(t, core.ComputeSettlementHash(req), claim.RequestHash)
	check.Equal(t, 64, len(claim.Nonce))
	check.True(t, claim.SignedAt.Equal(env.SignedAt))
	check.True(t, claim.RequestedAt.Equal(req.RequestedAt))
}

func TestSignerUsesFreshNonces(t *testing.T) {
	signer, _ := newTestSigner(t)

	first, err := signer.Sign(testRequest("auction-1"))
	assert.NoError(t, err)
	second, err := signer.Sign(testRequest("auction-1"))
	assert.NoError(t, err)

	a, err := first.COSEBase64.Decode()
	assert.NoError(t, err)
	b, err := second.COSEBase64.Decode()
	assert.NoError(t, err)
	claimA, err := a.ParseClaim()
	assert.NoError(t, err)
	claimB, err := b.ParseClaim()
	assert.NoError(t, err)
	check.NotEqual(t, claimA.Nonce, claimB.Nonce)
	check.Equal(t, claimA.RequestHash, claimB.RequestHash)
}

func TestSignatureFailsWithOtherKey(t *testing.T) {
	signer, _ := newTestSigner(t)
	other, err := NewKeyManager()
	assert.NoError(t, err)

	env, err := signer.Sign(testRequest("auction-1"))
	assert.NoError(t, err)
	coseBytes, err := env.COSEBase64.Decode()
	assert.NoError(t, err)

	var msg cose.Sign1Message
	assert.NoError(t, msg.UnmarshalCBOR(coseBytes))
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, other.PublicKey)
	assert.NoError(t, err)
	check.Error(t, msg.Verify(nil, verifier))
}
