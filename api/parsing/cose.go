package parsing

import (
	"fmt"

	"github.com/veraison/go-cose"
)

// ExtractCOSEPayload returns the payload of a tagged COSE_Sign1 message.
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
// The signature is not checked.
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: empty payload")
	}
	return msg.Payload, nil
}
