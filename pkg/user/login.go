package user

import (
	"context"
	"net/http"
	"time"

	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/password"
	"github.com/vaultd/vaultd/pkg/totp"
)

// Login implements §4.8 Login: verifies the password, then — if the account
// has TOTP enabled — requires a matching 6-digit code. A nil totpCode on a
// TOTP-enabled account returns ErrTOTPRequired so the handler can respond
// 307 and let the client re-submit with the code; a wrong code returns
// ErrTOTPInvalid. On success a session is issued and its cookie set on w.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, username, rawPassword string, totpCode *string, clientInfo string) (*models.User, error) {
	u, err := s.store.ValidateCredentials(ctx, username, func(hash string) (bool, error) {
		return password.Verify(rawPassword, hash)
	})
	if err != nil {
		return nil, err
	}

	if u.TOTPEnabled {
		if totpCode == nil {
			return nil, models.ErrTOTPRequired
		}
		ok, err := totp.Verify(*u.TOTPSecret, *totpCode, time.Now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.ErrTOTPInvalid
		}
	}

	if _, err := s.sessions.Issue(ctx, w, u.ID, clientInfo); err != nil {
		return nil, err
	}
	return u, nil
}
