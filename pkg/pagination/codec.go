package pagination

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TokenVersion identifies the current token layout. Tokens carrying any other version are rejected.
const TokenVersion = "tc1"

var (
	ErrInvalidCursor   = errors.New("invalid cursor token")
	ErrCursorVersion   = errors.New("unsupported cursor token version")
	ErrCursorSignature = errors.New("cursor token signature mismatch")
)

// Codec turns cursors into signed opaque tokens and back.
//
// A token has the form version.payload.signature where payload is the base64url encoded
// JSON cursor and signature is an HMAC-SHA256 over "version.payload".
type Codec[Q Query] struct {
	secret []byte
}

// NewCodec builds a codec signing tokens with secret.
func NewCodec[Q Query](secret string) (*Codec[Q], error) {
	if secret == "" {
		return nil, fmt.Errorf("cursor signing secret missing")
	}
	return &Codec[Q]{secret: []byte(secret)}, nil
}

// Encode serialises cur. The output is deterministic for equal cursors.
func (c *Codec[Q]) Encode(cur Cursor[Q]) (string, error) {
	if !cur.Direction.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, cur.Direction)
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join([]string{TokenVersion, payload, c.sign(TokenVersion, payload)}, "."), nil
}

// Decode parses and verifies token.
func (c *Codec[Q]) Decode(token string) (Cursor[Q], error) {
	var cur Cursor[Q]

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return cur, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}
	version, payload, signature := parts[0], parts[1], parts[2]
	if version != TokenVersion {
		return cur, fmt.Errorf("%w: %q", ErrCursorVersion, version)
	}
	if !hmac.Equal([]byte(c.sign(version, payload)), []byte(signature)) {
		return cur, ErrCursorSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return cur, fmt.Errorf("%w: decode payload: %v", ErrInvalidCursor, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cur); err != nil {
		return cur, fmt.Errorf("%w: unmarshal payload: %v", ErrInvalidCursor, err)
	}

	// Only canonical payloads are accepted so that re-encoding reproduces the token.
	canonical, err := json.Marshal(cur)
	if err != nil || !bytes.Equal(canonical, raw) {
		return Cursor[Q]{}, fmt.Errorf("%w: non canonical payload", ErrInvalidCursor)
	}
	if _, err := cur.Boundary(); err != nil {
		return Cursor[Q]{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	return cur, nil
}

func (c *Codec[Q]) sign(version, payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(version + "." + payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
