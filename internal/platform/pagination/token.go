package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Page tokens are opaque to clients: a URL-safe base64 wrapping of the JSON
// cursor. An empty cursor yields an empty token so first pages carry none.

// EncodeToken serialises cursor into a page token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.IsZero() {
		return "", nil
	}
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken reverses EncodeToken. Blank input decodes to the zero cursor;
// anything malformed wraps ErrInvalidPageToken so handlers can reply 400.
func DecodeToken(token string) (Cursor, error) {
	var cursor Cursor
	token = strings.TrimSpace(token)
	if token == "" {
		return cursor, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err == nil {
		err = json.Unmarshal(raw, &cursor)
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}
