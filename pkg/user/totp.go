package user

import (
	"context"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/totp"
)

// RegenerateTOTP implements §4.8 TOTP Regenerate: issues a fresh secret,
// marks it unverified, and returns the provisioning URI for a QR code. The
// secret only takes effect once Verify confirms the user's authenticator
// app computed it correctly.
func (s *Service) RegenerateTOTP(ctx context.Context, userID, issuer string) (secret, provisioningURI string, err error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	secret, err = totp.GenerateSecret()
	if err != nil {
		return "", "", err
	}
	if err := s.store.UpdateTOTP(ctx, userID, &secret, u.TOTPEnabled, false); err != nil {
		return "", "", err
	}
	return secret, totp.ProvisioningURI(issuer, u.Username, secret), nil
}

// VerifyTOTP implements §4.8 TOTP Verify: flips verified=true once the
// caller proves possession of the secret with a matching code.
func (s *Service) VerifyTOTP(ctx context.Context, userID, code string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == nil {
		return models.ErrTOTPNotVerified
	}
	ok, err := totp.Verify(*u.TOTPSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrTOTPInvalid
	}
	return s.store.UpdateTOTP(ctx, userID, u.TOTPSecret, u.TOTPEnabled, true)
}

// EnableTOTP implements §4.8 TOTP Enable: requires a previously-verified
// secret (verified ∧ secret present).
func (s *Service) EnableTOTP(ctx context.Context, userID string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.TOTPSecret == nil || !u.TOTPVerified {
		return models.ErrTOTPNotVerified
	}
	return s.store.UpdateTOTP(ctx, userID, u.TOTPSecret, true, true)
}

// DisableTOTP implements §4.8 TOTP Disable.
func (s *Service) DisableTOTP(ctx context.Context, userID string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.store.UpdateTOTP(ctx, userID, u.TOTPSecret, false, u.TOTPVerified)
}
