package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

const (
	DefaultOTPTTL         = 5 * time.Minute
	DefaultOTPMaxAttempts = 3
)

// OTPChallenge is a short-lived, externally persisted verification record.
type OTPChallenge struct {
	Subject     string    `json:"subject"`
	SecretHash  string    `json:"secret_hash"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

type OTPOutcome string

const (
	OTPVerified OTPOutcome = "verified"
	OTPMismatch OTPOutcome = "mismatch"
	OTPExpired  OTPOutcome = "expired"
	OTPLocked   OTPOutcome = "locked"
)

// Terminal reports whether the challenge must be discarded after this outcome.
func (o OTPOutcome) Terminal() bool {
	return o != OTPMismatch
}

func IssueOTP(subject, secret string, now time.Time, ttl time.Duration, maxAttempts int) OTPChallenge {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultOTPMaxAttempts
	}
	return OTPChallenge{
		Subject:     NormalizeSubject(subject),
		SecretHash:  hashOTPSecret(secret),
		ExpiresAt:   now.Add(ttl),
		MaxAttempts: maxAttempts,
	}
}

// VerifyOTP checks input against the challenge and returns the updated
// challenge together with the outcome. A mismatch consumes one attempt; the
// last allowed mismatch locks the challenge.
func VerifyOTP(ch OTPChallenge, input string, now time.Time) (OTPChallenge, OTPOutcome) {
	if ExpireOTP(ch, now) {
		return ch, OTPExpired
	}
	if ch.Attempts >= ch.MaxAttempts {
		return ch, OTPLocked
	}
	given := hashOTPSecret(strings.TrimSpace(input))
	if subtle.ConstantTimeCompare([]byte(given), []byte(ch.SecretHash)) == 1 {
		return ch, OTPVerified
	}
	ch.Attempts++
	if ch.Attempts >= ch.MaxAttempts {
		return ch, OTPLocked
	}
	return ch, OTPMismatch
}

func ExpireOTP(ch OTPChallenge, now time.Time) bool {
	return !now.Before(ch.ExpiresAt)
}

func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

func hashOTPSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerificationResult carries an access token when a verified subject is a
// known directory member.
type VerificationResult struct {
	Outcome     OTPOutcome `json:"outcome"`
	AccessToken string     `json:"access_token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Actor       *Actor     `json:"actor,omitempty"`
}
