package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewDecodeError("cannot decode source", cause).WithItem("screen-front")

	msg := err.Error()
	for _, want := range []string{"decode", "screen-front", "cannot decode source", "unexpected EOF"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
	if !stderrors.Is(err, cause) {
		t.Error("Expected error to unwrap to its cause")
	}
}

func TestWithItemCopies(t *testing.T) {
	base := NewCanvasError("draw failed", nil)
	tagged := base.WithItem("a")
	if base.Item != "" {
		t.Error("Expected WithItem not to modify the receiver")
	}
	if tagged.Item != "a" {
		t.Errorf("Expected item a, got %q", tagged.Item)
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("render: %w", NewAssetMissingError("decal", nil))

	if !IsType(err, ErrorTypeAssetMissing) {
		t.Error("Expected wrapped asset_missing error to match")
	}
	if IsType(err, ErrorTypeDecode) {
		t.Error("Expected no match for another type")
	}
	if IsType(stderrors.New("plain"), ErrorTypeDecode) {
		t.Error("Expected plain errors not to match")
	}
	if got := TypeOf(err); got != ErrorTypeAssetMissing {
		t.Errorf("Expected asset_missing, got %q", got)
	}
}

func TestFromContext(t *testing.T) {
	if e := FromContext(fmt.Errorf("decode: %w", context.DeadlineExceeded)); e == nil || e.Type != ErrorTypeTimeout {
		t.Errorf("Expected timeout error, got %v", e)
	}
	if e := FromContext(context.Canceled); e == nil || e.Type != ErrorTypeCancelled {
		t.Errorf("Expected cancelled error, got %v", e)
	}
	if e := FromContext(stderrors.New("other")); e != nil {
		t.Errorf("Expected nil for non-context error, got %v", e)
	}
}
