package validation

import (
	"testing"

	"github.com/skillsenselab/scribe/errors"
)

type submitRequest struct {
	Filename string `json:"filename" validate:"required"`
	SizeB    int64  `json:"size_bytes" validate:"gt=0"`
	Mode     string `json:"mode" validate:"oneof=balanced turbo"`
}

func TestValidate_Valid(t *testing.T) {
	req := submitRequest{Filename: "call.wav", SizeB: 1024, Mode: "balanced"}
	if err := Validate(req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	req := submitRequest{SizeB: 0, Mode: "fast"}
	err := Validate(req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", errors.CodeOf(err))
	}
}
