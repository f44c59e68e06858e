package app

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// ErrEncoding wraps any failure to turn raw media into its transport encoding.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("encode media: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// EncodeMedia converts raw binary media into its transport-safe form.
// Deterministic and reversible; the only failure mode is unreadable input,
// which callers see as nil input here.
func EncodeMedia(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// EncodeMediaFile reads and encodes a media file selected by the user.
func EncodeMediaFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &EncodingError{Path: path, Err: err}
	}
	return EncodeMedia(raw), nil
}

// CleanBase64 strips a data-URI scheme prefix ("data:image/png;base64,...")
// if present; the backend expects the bare payload.
func CleanBase64(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+1:]
	}
	return s
}
