package query

import (
	"testing"

	"github.com/goliatone/go-authflow/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestCheckStatusMessage_ValidateReturnsRichError(t *testing.T) {
	err := (CheckStatusMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.FlowErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.FlowErrorBadInput, rich.TextCode)
	}
}
