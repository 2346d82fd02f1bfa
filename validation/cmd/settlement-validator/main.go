package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/validation"
)

func main() {
	// Define CLI flags
	var (
		envelopeInput  = flag.String("envelope", "", "Settlement envelope JSON (file path or inline JSON)")
		publicKeyInput = flag.String("public-key", "", "Pinned signing public key PEM (file path or inline PEM)")
		expectInput    = flag.String("expect", "", "Expected settlement JSON (file path or inline JSON)")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	// Show help
	if *help {
		showUsage()
		os.Exit(0)
	}

	if *envelopeInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --envelope is required\n")
		os.Exit(1)
	}

	input, err := buildValidationInput(*envelopeInput, *publicKeyInput, *expectInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(2)
	}

	// Validate using library
	result, err := validation.ValidateSettlementEnvelope(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	// Output results
	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	// Exit with appropriate code
	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Envelope Validator")
	fmt.Println()
	fmt.Println("Verifies a signed settlement envelope emitted by auctiond.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  settlement-validator --envelope <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --envelope <json>                 Settlement envelope (GET /auctions/{id}/settlement)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --public-key <pem>                Pin the signing key instead of trusting the envelope")
	fmt.Println("  --expect <json>                   Expected auction id, winners and total payout")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Input Format:")
	fmt.Println("  Each flag accepts either a file path or an inline value.")
	fmt.Println()
	fmt.Println("Expected Settlement:")
	fmt.Println("  {")
	fmt.Println("    \"auction_id\": \"9f1c...\",")
	fmt.Println("    \"total_payout\": \"150\",")
	fmt.Println("    \"winners\": [{\"bidder\": \"alice\", \"amount\": \"150\"}]")
	fmt.Println("  }")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  curl -s localhost:8080/auctions/9f1c.../settlement > envelope.json")
	fmt.Println("  settlement-validator --envelope envelope.json --public-key signing.pub")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	// Treat as inline value
	return []byte(input), nil
}

func buildValidationInput(envelopeInput, publicKeyInput, expectInput string) (*validation.SettlementValidationInput, error) {
	envelopeJSON, err := readInput(envelopeInput)
	if err != nil {
		return nil, err
	}
	var envelope api.SettlementEnvelope
	if err := json.Unmarshal(envelopeJSON, &envelope); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	input := &validation.SettlementValidationInput{Envelope: envelope}

	if publicKeyInput != "" {
		pemData, err := readInput(publicKeyInput)
		if err != nil {
			return nil, err
		}
		input.PinnedPublicKey = string(pemData)
	}

	if expectInput != "" {
		expectJSON, err := readInput(expectInput)
		if err != nil {
			return nil, err
		}
		var expected validation.ExpectedSettlement
		if err := json.Unmarshal(expectJSON, &expected); err != nil {
			return nil, fmt.Errorf("parse expected settlement: %w", err)
		}
		input.Expected = &expected
	}
	return input, nil
}

func outputText(result *validation.SettlementValidationResult) {
	fmt.Println("Settlement Envelope Validator")
	fmt.Println("=============================")
	fmt.Println()

	fmt.Println("Summary:")
	fmt.Printf("  Key Valid:               %v\n", result.KeyValid)
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Request Hash Valid:      %v\n", result.HashValid)
	fmt.Printf("  Totals Valid:            %v\n", result.TotalsValid)
	fmt.Printf("  Envelope Valid:          %v\n", result.EnvelopeValid)
	fmt.Printf("  Expectation Valid:       %v\n", result.ExpectationValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("=============================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.SettlementValidationResult) {
	output := map[string]any{
		"valid":             result.IsValid(),
		"key_valid":         result.KeyValid,
		"signature_valid":   result.SignatureValid,
		"hash_valid":        result.HashValid,
		"totals_valid":      result.TotalsValid,
		"envelope_valid":    result.EnvelopeValid,
		"expectation_valid": result.ExpectationValid,
		"details":           result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
