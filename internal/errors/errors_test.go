package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestFmtError_Error(t *testing.T) {
	err := &FmtError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: "File not found: a.md",
	}

	expected := "FILE_NOT_FOUND: File not found: a.md"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("text is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "text is required" {
		t.Errorf("Message = %q, want %q", err.Message, "text is required")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/nonexistent/file.txt")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Message != "File not found: /nonexistent/file.txt" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["path"] != "/nonexistent/file.txt" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewInvalidEncoding(t *testing.T) {
	err := NewInvalidEncoding(7)

	if err.Code != ErrInvalidEncoding {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidEncoding)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["offset"] != 7 {
		t.Errorf("Details[offset] = %v, want 7", err.Details["offset"])
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		cause := fmt.Errorf("disk full")
		err := NewInternal(cause)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "disk full" {
			t.Errorf("Message = %q, want %q", err.Message, "disk full")
		}
		if !stderrors.Is(err, cause) {
			t.Error("errors.Is(err, cause) = false, want true")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestWithPath(t *testing.T) {
	orig := NewInvalidEncoding(3)
	withPath := orig.WithPath("docs/a.md")

	if withPath.Details["path"] != "docs/a.md" {
		t.Errorf("Details[path] = %v, want docs/a.md", withPath.Details["path"])
	}
	if withPath.Details["offset"] != 3 {
		t.Errorf("Details[offset] = %v, want 3", withPath.Details["offset"])
	}
	if _, ok := orig.Details["path"]; ok {
		t.Error("WithPath mutated the original error")
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("format")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Status != 499 {
		t.Errorf("Status = %d, want 499", err.Status)
	}
	if err.Message != "format cancelled" {
		t.Errorf("Message = %q, want %q", err.Message, "format cancelled")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewFileNotFound("x"), ErrFileNotFound, true},
		{"different code", NewFileNotFound("x"), ErrInternal, false},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
