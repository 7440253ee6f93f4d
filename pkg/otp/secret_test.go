package otp

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
)

// TestDecodeSecret tests decoding of valid secrets
func TestDecodeSecret(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		enc     Encoding
		want    []byte
	}{
		{"base32 padded", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", EncodingBase32, rfc4226Secret},
		{"base32 lower case", "gezdgnbvgy3tqojqgezdgnbvgy3tqojq", EncodingBase32, rfc4226Secret},
		{"base32 grouped", "GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ", EncodingBase32, rfc4226Secret},
		{"base32 unpadded", "MFRGG", EncodingBase32, []byte("abc")},
		{"base32 with padding", "MFRGG===", EncodingBase32, []byte("abc")},
		{"base32 hello", "JBSWY3DPEHPK3PXP", EncodingBase32, []byte("Hello!\xde\xad\xbe\xef")},
		{"base64 padded", "MTIzNDU2Nzg5MDEyMzQ1Njc4OTA=", EncodingBase64, rfc4226Secret},
		{"base64 unpadded", "MTIzNDU2Nzg5MDEyMzQ1Njc4OTA", EncodingBase64, rfc4226Secret},
		{"base64 binary", "3q2+7w==", EncodingBase64, []byte{0xde, 0xad, 0xbe, 0xef}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSecret(tt.encoded, tt.enc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected %x, got %x", tt.want, got)
			}
		})
	}
}

// TestDecodeSecretRejects tests malformed input
func TestDecodeSecretRejects(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		enc     Encoding
		wantErr error
	}{
		{"base32 symbol", "invalid@secret!", EncodingBase32, ErrDecode},
		{"base32 digit one", "MFRG1", EncodingBase32, ErrDecode},
		{"base32 digit zero", "0AAAAAAA", EncodingBase32, ErrDecode},
		{"base32 digit eight", "8AAAAAAA", EncodingBase32, ErrDecode},
		{"base32 bad length", "A", EncodingBase32, ErrDecode},
		{"base32 inner padding", "MF=RGG", EncodingBase32, ErrDecode},
		{"base32 empty", "", EncodingBase32, ErrDecode},
		{"base32 only spaces", "   ", EncodingBase32, ErrDecode},
		{"base64 url alphabet", "3q2-7w", EncodingBase64, ErrDecode},
		{"base64 symbol", "ab$d", EncodingBase64, ErrDecode},
		{"base64 bad length", "A", EncodingBase64, ErrDecode},
		{"base64 empty", "", EncodingBase64, ErrDecode},
		{"unknown encoding", "MFRGG", Encoding("hex"), ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSecret(tt.encoded, tt.enc)
			if err == nil {
				t.Fatalf("expected error %v, got %x", tt.wantErr, got)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSecretRoundTrip encodes and decodes random secrets in both schemes
func TestSecretRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, enc := range []Encoding{EncodingBase32, EncodingBase64} {
		for n := 1; n <= 64; n++ {
			raw := make([]byte, n)
			for i := range raw {
				raw[i] = byte(rng.UintN(256))
			}

			encoded, err := EncodeSecret(raw, enc)
			if err != nil {
				t.Fatalf("%s len %d: encode: %v", enc, n, err)
			}
			decoded, err := DecodeSecret(encoded, enc)
			if err != nil {
				t.Fatalf("%s len %d: decode %q: %v", enc, n, encoded, err)
			}
			if !bytes.Equal(raw, decoded) {
				t.Fatalf("%s len %d: round trip mismatch", enc, n)
			}
		}
	}
}

// TestEncodeSecretErrors tests encoding failures
func TestEncodeSecretErrors(t *testing.T) {
	if _, err := EncodeSecret(nil, EncodingBase32); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := EncodeSecret([]byte("k"), "hex"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

// TestParseEncoding tests configuration parsing
func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingBase32, false},
		{"base32", EncodingBase32, false},
		{"BASE32", EncodingBase32, false},
		{" Base64 ", EncodingBase64, false},
		{"hex", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("%q: expected ErrConfiguration, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
