package otp

import (
	"encoding/base32"
	"encoding/base64"
	"strings"
)

// Encoding names the text encoding of a shared secret.
type Encoding string

const (
	// EncodingBase32 is RFC 4648 base32, the format authenticator apps use.
	EncodingBase32 Encoding = "base32"
	// EncodingBase64 is RFC 4648 standard base64.
	EncodingBase64 Encoding = "base64"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// ParseEncoding maps a configuration string onto an Encoding.
// An empty string selects base32.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EncodingBase32):
		return EncodingBase32, nil
	case string(EncodingBase64):
		return EncodingBase64, nil
	default:
		return "", newError(KindConfiguration, "encoding", nil, "unknown secret encoding %q", s)
	}
}

// DecodeSecret decodes a text-encoded secret into raw key bytes.
//
// Base32 input is folded to upper case and may omit padding or contain
// spaces between groups, as commonly displayed to users. Base64 input may
// omit padding. Characters outside the alphabet are rejected.
func DecodeSecret(encoded string, enc Encoding) ([]byte, error) {
	var (
		raw []byte
		err error
	)

	switch enc {
	case EncodingBase32:
		s := strings.ToUpper(stripSpaces(encoded))
		raw, err = base32NoPad.DecodeString(strings.TrimRight(s, "="))
	case EncodingBase64:
		s := stripSpaces(encoded)
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	default:
		return nil, newError(KindConfiguration, "decode", nil, "unknown secret encoding %q", string(enc))
	}

	if err != nil {
		return nil, newError(KindDecode, "decode", err, "secret is not valid %s", string(enc))
	}
	if len(raw) == 0 {
		return nil, newError(KindDecode, "decode", nil, "secret must not be empty")
	}
	return raw, nil
}

// EncodeSecret renders raw key bytes in the given encoding. Base32 output is
// unpadded, base64 output is padded.
func EncodeSecret(raw []byte, enc Encoding) (string, error) {
	if len(raw) == 0 {
		return "", newError(KindInvalidKey, "encode", nil, "secret must not be empty")
	}
	switch enc {
	case EncodingBase32:
		return base32NoPad.EncodeToString(raw), nil
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw), nil
	default:
		return "", newError(KindConfiguration, "encode", nil, "unknown secret encoding %q", string(enc))
	}
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
