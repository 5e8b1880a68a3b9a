// Package totp implements RFC 6238 time-based one-time passwords: HMAC-SHA1
// over a 30-second counter, 6-digit codes. No library in the donor or the
// rest of the pack covers TOTP; this is authored directly against the RFC
// using stdlib crypto primitives (see DESIGN.md "Stdlib justifications").
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // HOTP/TOTP mandates SHA1 per RFC 6238
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"time"
)

const (
	period     = 30 * time.Second
	digits     = 6
	secretSize = 20
)

// GenerateSecret returns a new random base32-encoded TOTP secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// Code computes the 6-digit TOTP code for secret at time t.
func Code(secret string, t time.Time) (string, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	counter := uint64(t.Unix()) / uint64(period.Seconds())
	msg := make([]byte, 8)
	binary.BigEndian.PutUint64(msg, counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	code := truncated % 1_000_000

	return fmt.Sprintf("%0*d", digits, code), nil
}

// Verify checks code against secret, allowing one period of clock skew in
// either direction.
func Verify(secret, code string, now time.Time) (bool, error) {
	for _, skew := range []time.Duration{0, -period, period} {
		want, err := Code(secret, now.Add(skew))
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// ProvisioningURI builds an otpauth:// URI suitable for QR-code
// provisioning in an authenticator app.
func ProvisioningURI(issuer, accountName, secret string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", fmt.Sprintf("%d", digits))
	v.Set("period", fmt.Sprintf("%d", int(period.Seconds())))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + accountName,
		RawQuery: v.Encode(),
	}
	return u.String()
}
