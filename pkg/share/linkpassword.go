package share

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// linkPasswordParams mirrors pkg/password's cost model, scaled down: link
// passwords are checked on every anonymous view request rather than once
// per login, so a lighter memory cost keeps /shared latency reasonable.
const (
	linkPwTime    = 1
	linkPwMemory  = 19 * 1024
	linkPwThreads = 2
	linkPwKeyLen  = 32
)

// hashLinkPassword derives a deterministic argon2id hash of password, salted
// by the link's own id. Unlike account passwords (random salt, compared via
// argon2id's own verifier), a link password must be reproducible from the
// plaintext alone so the Share Engine can compare it by exact byte equality
// (password.VerifyConstantTime) against whatever the caller presents next
// time — in the request body or in the `{link_id}={password}` cookie
// (§4.7 Consume).
func hashLinkPassword(linkID, password string) string {
	salt := sha256.Sum256([]byte("vaultd-link-salt:" + linkID))
	raw := argon2.IDKey([]byte(password), salt[:], linkPwTime, linkPwMemory, linkPwThreads, linkPwKeyLen)
	return base64.StdEncoding.EncodeToString(raw)
}
