package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifySignature checks header against the HMAC-SHA256 of rawBody keyed by
// secret. rawBody must be the exact bytes received: re-encoding parsed JSON
// can change whitespace or key order and break the comparison.
func VerifySignature(rawBody []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}

	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(got, Sign(rawBody, secret)) {
		return ErrInvalidSignature
	}
	return nil
}

// ValidateSignature is VerifySignature as a boolean.
func ValidateSignature(rawBody []byte, header, secret string) bool {
	return VerifySignature(rawBody, header, secret) == nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignatureFor formats the header value the provider would send for body.
func SignatureFor(body []byte, secret string) string {
	return signaturePrefix + hex.EncodeToString(Sign(body, secret))
}
