package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	n, err := ParseHex("0123456789ABCDEF0123456789ABCDEF")
	require.NoError(t, err)

	token := EncodeToken(n)
	assert.Contains(t, token, "-")

	decoded, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}

func TestTokenTamperInvalidatesCheckDigit(t *testing.T) {
	n, err := ParseHex("0123456789ABCDEF0123456789ABCDEF")
	require.NoError(t, err)

	token := EncodeToken(n)

	// flip a character in the body
	tampered := []byte(token)
	if tampered[0] == '0' {
		tampered[0] = '1'
	} else {
		tampered[0] = '0'
	}

	_, err = DecodeToken(string(tampered))
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestTokenMissingSeparator(t *testing.T) {
	_, err := DecodeToken("0123456789ABCDEF0123456789ABCDEFX")
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestTokenTrailingSeparator(t *testing.T) {
	_, err := DecodeToken("0123456789ABCDEF0123456789ABCDEF-")
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestTokenLowercaseBodyAccepted(t *testing.T) {
	n, err := ParseHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	token := EncodeToken(n)
	sep := strings.LastIndexByte(token, '-')
	lowered := strings.ToLower(token[:sep]) + token[sep:]

	decoded, err := DecodeToken(lowered)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}
