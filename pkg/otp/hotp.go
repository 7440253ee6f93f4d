package otp

import (
	"crypto"
	"crypto/hmac"
	"encoding/binary"

	// Register the hash implementations selectable through Algorithm.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// Algorithm represents the hash algorithm used for OTP generation.
type Algorithm string

const (
	// AlgorithmSHA1 uses SHA1 hash algorithm.
	AlgorithmSHA1 Algorithm = "SHA1"
	// AlgorithmSHA256 uses SHA256 hash algorithm.
	AlgorithmSHA256 Algorithm = "SHA256"
	// AlgorithmSHA512 uses SHA512 hash algorithm.
	AlgorithmSHA512 Algorithm = "SHA512"
)

// DefaultDigits is the length of a standard code.
const DefaultDigits = 6

// maxTruncated is the largest value dynamic truncation can produce (2^31 - 1).
const maxTruncated = 0x7fffffff

func (a Algorithm) hash() (crypto.Hash, error) {
	var h crypto.Hash
	switch a {
	case AlgorithmSHA1, "":
		h = crypto.SHA1
	case AlgorithmSHA256:
		h = crypto.SHA256
	case AlgorithmSHA512:
		h = crypto.SHA512
	default:
		return 0, newError(KindUnsupportedAlgorithm, "hotp", nil, "algorithm %q is not one of SHA1, SHA256, SHA512", string(a))
	}
	if !h.Available() {
		return 0, newError(KindUnsupportedAlgorithm, "hotp", nil, "%s is not linked into the binary", h.String())
	}
	return h, nil
}

// Engine computes HOTP values for a fixed algorithm and code length.
// The zero value is HMAC-SHA1 with six digits.
type Engine struct {
	Algorithm Algorithm
	Digits    int
}

func (e Engine) digits() int {
	if e.Digits == 0 {
		return DefaultDigits
	}
	return e.Digits
}

func (e Engine) validate() error {
	if d := e.digits(); d < 6 || d > 8 {
		return newError(KindConfiguration, "hotp", nil, "digits must be 6, 7, or 8, got %d", d)
	}
	_, err := e.Algorithm.hash()
	return err
}

// HOTP computes the RFC 4226 value for secret at counter, reduced modulo
// 10^Digits.
func (e Engine) HOTP(secret []byte, counter uint64) (uint32, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}
	if len(secret) == 0 {
		return 0, newError(KindInvalidKey, "hotp", nil, "secret must not be empty")
	}

	h, err := e.Algorithm.hash()
	if err != nil {
		return 0, err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(h.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	truncated, err := Truncate(sum)
	if err != nil {
		return 0, err
	}
	return truncated % pow10(e.digits()), nil
}

// HOTP computes the six digit HMAC-SHA1 value for secret at counter.
func HOTP(secret []byte, counter uint64) (uint32, error) {
	return Engine{}.HOTP(secret, counter)
}

// Truncate performs RFC 4226 dynamic truncation on an HMAC digest and returns
// the 31-bit value before decimal reduction. The offset comes from the low
// nibble of the last byte, which for SHA1 is hash[19].
func Truncate(hash []byte) (uint32, error) {
	if len(hash) < 20 {
		return 0, newError(KindInvalidKey, "truncate", nil, "digest is %d bytes, need at least 20", len(hash))
	}
	offset := int(hash[len(hash)-1] & 0x0f)
	return binary.BigEndian.Uint32(hash[offset:offset+4]) & maxTruncated, nil
}

func pow10(n int) uint32 {
	p := uint32(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
