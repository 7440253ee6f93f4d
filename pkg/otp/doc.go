// Package otp derives and validates HOTP (RFC 4226) and TOTP (RFC 6238)
// one-time passwords.
//
// The package is split along the derivation pipeline:
//
//	encoded secret -> DecodeSecret -> raw key bytes
//	clock, step     -> CurrentCounter -> time-step counter
//	key, counter    -> HOTP (HMAC + dynamic truncation) -> code
//	Generator.TOTP  -> minimum digit policy -> Token
//
// # Generating a token
//
//	token, err := otp.Generate("JBSWY3DPEHPK3PXP", otp.EncodingBase32, 30)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(token) // e.g. "492039"
//
// HOTP reduction can yield values below 100000, which print with fewer than
// six digits. Instead of zero padding, a Generator re-reads the clock and
// derives again, up to five attempts, and returns the last code if none is
// full length. Token.Padded is available for callers that want padding.
//
// # Custom policy
//
//	gen, err := otp.NewGenerator(
//	    otp.WithClock(clock),
//	    otp.WithMaxAttempts(3),
//	    otp.WithAlgorithm(otp.AlgorithmSHA256),
//	)
//
// # Validation
//
// Authenticator validates codes submitted by users with
// github.com/pquerna/otp, allowing for clock skew:
//
//	auth, err := otp.NewAuthenticator(otp.Config{
//	    Type:   otp.TypeTOTP,
//	    Secret: "JBSWY3DPEHPK3PXP",
//	    Skew:   1,
//	})
//	err = auth.Authenticate(ctx, "492039")
//
// Codes shorter than the configured length are zero padded before
// comparison, so unpadded tokens verify.
//
// # Errors
//
// Every failure is an *Error carrying a Kind. Use errors.Is with ErrDecode,
// ErrConfiguration, ErrInvalidKey or ErrUnsupportedAlgorithm.
//
// # Thread Safety
//
// Generator and Authenticator are immutable after construction and safe for
// concurrent use. Decoded key bytes are zeroed before Generate returns.
//
// This package performs no logging.
package otp
