package http

import (
	"errors"
	"strings"
	"testing"
)

func TestUint256Validation(t *testing.T) {
	type P struct {
		Amount string `json:"amount" validate:"uint256"`
	}
	cv := NewValidator()

	for _, s := range []string{"0", "1", "5000000", strings.Repeat("9", 77)} {
		if err := cv.Validate(P{Amount: s}); err != nil {
			t.Fatalf("expected %q to be valid, got %v", s, err)
		}
	}
	for _, s := range []string{
		"",                      // empty
		"-1",                    // negative
		"1.5",                   // fraction
		"0x10",                  // hex
		"abc",                   // garbage
		strings.Repeat("9", 79), // wider than 256 bits
	} {
		err := cv.Validate(P{Amount: s})
		if err == nil {
			t.Fatalf("expected error for %q", s)
		}
		if !containsFieldMsg(ToFieldErrors(err), "amount", "below 2^256") {
			t.Fatalf("expected uint256 message for %q, got: %+v", s, ToFieldErrors(err))
		}
	}
}

func TestAmountValidation_RejectsZero(t *testing.T) {
	type P struct {
		Amount string `json:"amount" validate:"amount"`
	}
	cv := NewValidator()

	if err := cv.Validate(P{Amount: "1"}); err != nil {
		t.Fatalf("expected 1 valid, got %v", err)
	}
	err := cv.Validate(P{Amount: "0"})
	if err == nil || !containsFieldMsg(ToFieldErrors(err), "amount", "positive") {
		t.Fatalf("expected positive-amount error, got %v", err)
	}
}

func TestEthAddrValidation(t *testing.T) {
	type P struct {
		Borrower string `json:"borrower" validate:"eth_addr"`
	}
	cv := NewValidator()

	for _, s := range []string{
		"0x00000000000000000000000000000000000000b0",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	} {
		if err := cv.Validate(P{Borrower: s}); err != nil {
			t.Fatalf("expected %q valid, got %v", s, err)
		}
	}
	for _, s := range []string{"", "0x1234", "00000000000000000000000000000000000000b0", "0x" + strings.Repeat("g", 40)} {
		err := cv.Validate(P{Borrower: s})
		if err == nil || !containsFieldMsg(ToFieldErrors(err), "borrower", "hex address") {
			t.Fatalf("expected address error for %q, got %v", s, err)
		}
	}
}

func TestNestedFieldNames(t *testing.T) {
	type Inner struct {
		Signature string `json:"signature" validate:"required,hexadecimal"`
	}
	type Outer struct {
		Responses []Inner `json:"responses" validate:"dive"`
	}
	cv := NewValidator()

	err := cv.Validate(Outer{Responses: []Inner{{Signature: "0xab"}, {Signature: ""}}})
	if err == nil {
		t.Fatal("expected error")
	}
	fe := ToFieldErrors(err)
	if len(fe) != 1 || !containsFieldMsg(fe, "responses[1].signature", "is required") {
		t.Fatalf("unexpected details: %+v", fe)
	}
}

func TestToFieldErrors_NonValidationError(t *testing.T) {
	fe := ToFieldErrors(errors.New("boom"))
	if len(fe) != 1 || fe[0].Field != "_" || fe[0].Message != "boom" {
		t.Fatalf("unexpected: %+v", fe)
	}
}
