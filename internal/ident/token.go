package ident

import (
	"errors"
	"strings"
)

// ErrBadToken is returned when a token is malformed: missing separator,
// trailing separator, or a mismatching check digit.
var ErrBadToken = errors.New("ident: bad token")

const checkAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ+"

// checkDigit computes the modulo-37 weighted-sum check digit over the
// uppercase hex characters of a NID, per §4.5.
func checkDigit(hexUpper string) byte {
	result := 0
	multiplier := 36
	for i := 0; i < len(hexUpper); i++ {
		result += multiplier * hexValue(hexUpper[i])
		multiplier--
	}
	rem := result % 37
	if rem != 0 {
		rem = 37 - rem
	}
	return checkAlphabet[rem]
}

func hexValue(d byte) int {
	switch {
	case d >= '0' && d <= '9':
		return int(d - '0')
	case d >= 'A' && d <= 'F':
		return int(d-'A') + 10
	case d >= 'a' && d <= 'f':
		return int(d-'a') + 10
	default:
		return 0
	}
}

// EncodeToken renders a NID as its wire-format lock token:
// "<hex NID>-<check digit>".
func EncodeToken(n NID) string {
	body := n.HexUpper()
	return body + "-" + string(checkDigit(body))
}

// DecodeToken parses a lock token, accepting upper or lower case hex in the
// body. It rejects tokens missing the separator, with a trailing separator,
// or whose check digit does not match.
func DecodeToken(token string) (NID, error) {
	sep := strings.LastIndexByte(token, '-')
	if sep < 0 || sep == len(token)-1 {
		return Nil, ErrBadToken
	}

	body := strings.ToUpper(token[:sep])
	check := token[sep+1:]
	if len(check) != 1 {
		return Nil, ErrBadToken
	}

	n, err := ParseHex(body)
	if err != nil {
		return Nil, ErrBadToken
	}

	if checkDigit(body) != check[0] {
		return Nil, ErrBadToken
	}

	return n, nil
}
