package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/dynauction/api/parsing"
	"github.com/cloudx-io/dynauction/core"
)

const (
	EnvelopeType = "settlement_envelope"
	KeyAlgorithm = "ECDSA-P256"
)

// ClaimWinner is one payee line of a signed settlement claim.
// Amounts are fixed to six decimal places.
type ClaimWinner struct {
	Bidder string `cbor:"bidder" json:"bidder"`
	Amount string `cbor:"amount" json:"amount"`
}

// SettlementClaim is the CBOR payload signed into a settlement envelope.
type SettlementClaim struct {
	AuctionID    string        `cbor:"auction_id" json:"auction_id"`
	Seller       string        `cbor:"seller" json:"seller"`
	PaymentToken string        `cbor:"payment_token" json:"payment_token"`
	Winners      []ClaimWinner `cbor:"winners" json:"winners"`
	TotalPayout  string        `cbor:"total_payout" json:"total_payout"`
	Fee          string        `cbor:"fee" json:"fee"`
	Reason       string        `cbor:"reason" json:"reason"`
	RequestHash  string        `cbor:"request_hash" json:"request_hash"`
	Nonce        string        `cbor:"nonce" json:"nonce"`
	RequestedAt  time.Time     `cbor:"requested_at" json:"requested_at"`
	SignedAt     time.Time     `cbor:"signed_at" json:"signed_at"`
}

// NewSettlementClaim builds the claim for req.
func NewSettlementClaim(req core.SettlementRequest, nonce string, signedAt time.Time) SettlementClaim {
	winners := make([]ClaimWinner, 0, len(req.Winners))
	for _, w := range req.Winners {
		winners = append(winners, ClaimWinner{Bidder: w.Bidder, Amount: w.Amount.StringFixed(core.MonetaryPrecision)})
	}
	return SettlementClaim{
		AuctionID:    req.AuctionID,
		Seller:       req.Seller,
		PaymentToken: req.PaymentToken,
		Winners:      winners,
		TotalPayout:  req.TotalPayout.StringFixed(core.MonetaryPrecision),
		Fee:          req.Fee.StringFixed(core.MonetaryPrecision),
		Reason:       string(req.Reason),
		RequestHash:  core.ComputeSettlementHash(req),
		Nonce:        nonce,
		RequestedAt:  req.RequestedAt,
		SignedAt:     signedAt,
	}
}

// SettlementCOSE is a raw COSE_Sign1 message carrying a SettlementClaim.
type SettlementCOSE []byte

// SettlementCOSEBase64 is SettlementCOSE in standard base64.
type SettlementCOSEBase64 string

// SettlementCOSEURLSafe is SettlementCOSE in unpadded URL-safe base64.
type SettlementCOSEURLSafe string

// SettlementCOSEGzip is gzip-compressed SettlementCOSE in unpadded URL-safe base64.
type SettlementCOSEGzip string

func (c SettlementCOSE) EncodeBase64() SettlementCOSEBase64 {
	return SettlementCOSEBase64(base64.StdEncoding.EncodeToString(c))
}

func (c SettlementCOSE) EncodeURLSafe() SettlementCOSEURLSafe {
	return SettlementCOSEURLSafe(base64.RawURLEncoding.EncodeToString(c))
}

// CompressGzip compresses the message for transport in URLs and webhooks.
func (c SettlementCOSE) CompressGzip() (SettlementCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(c); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return SettlementCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseClaim extracts and decodes the signed claim without verifying the signature.
func (c SettlementCOSE) ParseClaim() (*SettlementClaim, error) {
	payload, err := parsing.ExtractCOSEPayload(c)
	if err != nil {
		return nil, err
	}
	var claim SettlementClaim
	if err := cbor.Unmarshal(payload, &claim); err != nil {
		return nil, fmt.Errorf("parse settlement claim: %w", err)
	}
	return &claim, nil
}

func (b SettlementCOSEBase64) Decode() (SettlementCOSE, error) {
	raw, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return SettlementCOSE(raw), nil
}

func (b SettlementCOSEBase64) String() string { return string(b) }

func (u SettlementCOSEURLSafe) Decode() (SettlementCOSE, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(u))
	if err != nil {
		return nil, fmt.Errorf("decode url-safe base64: %w", err)
	}
	return SettlementCOSE(raw), nil
}

func (u SettlementCOSEURLSafe) String() string { return string(u) }

func (g SettlementCOSEGzip) Decompress() (SettlementCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode url-safe base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return SettlementCOSE(raw), nil
}

func (g SettlementCOSEGzip) String() string { return string(g) }

// SettlementEnvelope is what the outbox delivers for each settled auction.
type SettlementEnvelope struct {
	Type         string               `json:"type"`
	AuctionID    string               `json:"auction_id"`
	COSEBase64   SettlementCOSEBase64 `json:"settlement_cose_base64"`
	PublicKey    string               `json:"public_key"` // PEM
	KeyAlgorithm string               `json:"key_algorithm"`
	SignedAt     time.Time            `json:"signed_at"`
}
