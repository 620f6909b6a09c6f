package scanner

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantReason    ErrorReason
		wantRetryable bool
	}{
		{"nil error", nil, ErrorUnknown, false},

		{"os.ErrNotExist", os.ErrNotExist, ErrorFileNotFound, false},
		{"os.ErrPermission", os.ErrPermission, ErrorPermissionDenied, false},

		{"EACCES", syscall.EACCES, ErrorPermissionDenied, false},
		{"EPERM", syscall.EPERM, ErrorPermissionDenied, false},

		// In-use failures are the only retryable category.
		{"EBUSY", syscall.EBUSY, ErrorFileInUse, true},
		{"ETXTBSY", syscall.ETXTBSY, ErrorFileInUse, true},

		{"ENOENT", syscall.ENOENT, ErrorFileNotFound, false},

		{"generic error", errors.New("something went wrong"), ErrorUnknown, false},
		{"wrapped errno", fmt.Errorf("remove: %w", syscall.EBUSY), ErrorFileInUse, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError("/test/path", tt.err)

			if tt.err == nil {
				if result != nil {
					t.Error("expected nil for nil error")
				}
				return
			}
			if result == nil {
				t.Fatal("unexpected nil result")
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", result.Reason, tt.wantReason)
			}
			if result.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", result.Retryable, tt.wantRetryable)
			}
			if result.Path != "/test/path" {
				t.Errorf("Path = %q, want /test/path", result.Path)
			}
		})
	}
}

func TestDeleteErrorFormatting(t *testing.T) {
	e := &DeleteError{Path: "/x", Reason: ErrorProtectedPath}
	if got := e.Error(); got != "/x: protected path" {
		t.Errorf("Error = %q", got)
	}

	inner := errors.New("device busy")
	e = &DeleteError{Path: "/y", Reason: ErrorFileInUse, Original: inner}
	if got := e.Error(); got != "/y: file is in use (device busy)" {
		t.Errorf("Error = %q", got)
	}
	if !errors.Is(e, inner) {
		t.Error("Unwrap should expose the original error")
	}
}

func TestErrorReasonStrings(t *testing.T) {
	cases := map[ErrorReason]string{
		ErrorPermissionDenied: "permission denied",
		ErrorFileInUse:        "file is in use",
		ErrorFileNotFound:     "file not found",
		ErrorProtectedPath:    "protected path",
		ErrorUnknown:          "unknown error",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", reason, got, want)
		}
	}
}
