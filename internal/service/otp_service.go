package service

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService implements ports.OTPService using RFC 6238 time-based one-time
// passwords. The long period (relative to authenticator apps) covers SMS
// delivery latency.
type TOTPService struct {
	issuer string
	digits otp.Digits
	period uint
	skew   uint
}

// NewTOTPService creates a TOTP service. period is in seconds; a skew of 1
// accepts the previous and next time step.
func NewTOTPService(issuer string, digits int, period time.Duration) *TOTPService {
	return &TOTPService{
		issuer: issuer,
		digits: otp.Digits(digits),
		period: uint(period.Seconds()),
		skew:   1,
	}
}

// GenerateSecret creates a fresh base32 TOTP seed for a new user.
func (s *TOTPService) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: s.issuer,
		Period:      s.period,
		Digits:      s.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generating otp secret: %w", err)
	}
	return key.Secret(), nil
}

// Code computes the current one-time password for the secret.
func (s *TOTPService) Code(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, time.Now(), s.validateOpts())
	if err != nil {
		return "", fmt.Errorf("generating otp code: %w", err)
	}
	return code, nil
}

// Verify reports whether the code is valid for the secret within the
// configured skew.
func (s *TOTPService) Verify(secret string, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), s.validateOpts())
	return err == nil && ok
}

func (s *TOTPService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    s.period,
		Skew:      s.skew,
		Digits:    s.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
