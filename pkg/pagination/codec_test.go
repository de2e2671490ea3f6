package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string { return &v }

func newTestCodec(t *testing.T) *Codec[testQuery] {
	codec, err := NewCodec[testQuery]("cursor-secret")
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	q := testQuery{Name: strPtr("red"), Tags: []string{"x", "y"}, Limit: 10}

	for _, cur := range []Cursor[testQuery]{First(q), Last(q), Next(q, "Beta"), Prev(q, "Gamma"), Next(testQuery{Limit: 1}, "ünïcode.with.dots")} {
		token, err := codec.Encode(cur)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(token, TokenVersion+"."))

		decoded, err := codec.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, cur, decoded)

		again, err := codec.Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, token, again)
	}
}

func TestCodecRejectsTampering(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(Next(testQuery{Limit: 2}, "Beta"))
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"position":"Zeta","direction":"ASC","query":{"limit":2}}`))
	_, err = codec.Decode(strings.Join([]string{parts[0], forged, parts[2]}, "."))
	assert.ErrorIs(t, err, ErrCursorSignature)

	other, err := NewCodec[testQuery]("another-secret")
	require.NoError(t, err)
	_, err = other.Decode(token)
	assert.ErrorIs(t, err, ErrCursorSignature)
}

func TestCodecRejectsUnknownVersion(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(First(testQuery{Limit: 2}))
	require.NoError(t, err)

	_, err = codec.Decode("tc0" + strings.TrimPrefix(token, TokenVersion))
	assert.ErrorIs(t, err, ErrCursorVersion)
}

func TestCodecRejectsMalformedTokens(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "garbage", "tc1.only-two", "a.b.c.d"} {
		_, err := codec.Decode(token)
		assert.Error(t, err, token)
	}

	signed := func(payload string) string {
		encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
		return TokenVersion + "." + encoded + "." + codec.sign(TokenVersion, encoded)
	}

	_, err := codec.Decode(signed(`not json`))
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = codec.Decode(signed(`{"position":"a","direction":"UP","query":{"limit":1}}`))
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = codec.Decode(signed(`{"direction":"ASC","position":"","query":{"limit":1}}`))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec[testQuery]("")
	assert.Error(t, err)
}

func TestCodecRejectsInvalidDirectionOnEncode(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.Encode(Cursor[testQuery]{Direction: "UP", Query: testQuery{Limit: 1}})
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
