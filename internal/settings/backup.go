package settings

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
)

// MaxBackupBytes caps the size of an imported settings document.
const MaxBackupBytes = 512 * 1024

// Encode renders settings as an indented JSON backup document.
func Encode(s *ChatSettings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses a backup document. Fields absent from the payload keep their defaults.
// Both a bare settings object and an object wrapping it under "settings" are accepted.
// Nothing is returned unless the whole document validates.
func Decode(payload []byte) (*ChatSettings, error) {
	if len(payload) > MaxBackupBytes {
		return nil, fmt.Errorf("%w: backup exceeds %d bytes", ngerrors.ErrPayloadTooLarge, MaxBackupBytes)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: backup is not valid JSON", ngerrors.ErrInvalidSettings)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: backup must be a JSON object", ngerrors.ErrInvalidSettings)
	}
	if wrapped := root.Get("settings"); wrapped.IsObject() {
		payload = []byte(wrapped.Raw)
	}

	s := Default()
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ngerrors.ErrInvalidSettings, err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
