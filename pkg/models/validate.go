package models

import "encoding/base64"

// ValidateNonce reports whether nonce is the base64 encoding of exactly
// NonceLength raw bytes (§3: "Nonce fields are base64 of exactly 12 bytes").
func ValidateNonce(nonce string) bool {
	raw, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return false
	}
	return len(raw) == NonceLength
}

// ValidateEncryptedKeyLength reports whether encryptedKey's raw byte length
// matches RootKeyLength (no parent — wrapped for the owner's public key) or
// ChildKeyLength (parent present — wrapped for the parent's symmetric key).
func ValidateEncryptedKeyLength(encryptedKey string, hasParent bool) bool {
	raw, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return false
	}
	if hasParent {
		return len(raw) == ChildKeyLength
	}
	return len(raw) == RootKeyLength
}

// ValidateFileInvariants checks the §3 structural invariants common to File
// and UploadTransaction: key_nonce presence mirrors parent presence,
// mime_nonce presence mirrors encrypted_mime presence, encrypted_key length
// matches root vs. child framing, and every present nonce is well-formed.
func ValidateFileInvariants(parentID *string, encryptedKey string, keyNonce *string, encryptedMime, mimeNonce *string, nameNonce string) bool {
	hasParent := parentID != nil

	if hasParent != (keyNonce != nil) {
		return false
	}
	if (encryptedMime != nil) != (mimeNonce != nil) {
		return false
	}
	if !ValidateEncryptedKeyLength(encryptedKey, hasParent) {
		return false
	}
	if !ValidateNonce(nameNonce) {
		return false
	}
	if keyNonce != nil && !ValidateNonce(*keyNonce) {
		return false
	}
	if mimeNonce != nil && !ValidateNonce(*mimeNonce) {
		return false
	}
	return true
}

// ValidateUsername reports whether username satisfies §4.8: alphanumeric
// and underscore only, more alphanumeric characters than underscores, 3-20
// bytes long.
func ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	var alnum, underscores int
	for _, r := range username {
		switch {
		case r == '_':
			underscores++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum++
		default:
			return false
		}
	}
	return alnum > underscores
}

// ValidateKeyMaterial checks the §4.8 registration invariants on a client's
// end-to-end-encryption envelope: the public key decodes to exactly
// PublicKeyLength bytes, the IV decodes to exactly NonceLength bytes, and
// the salt and encrypted private key are both present.
func ValidateKeyMaterial(publicKey, iv, salt, encryptedPrivateKey string) bool {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(raw) != PublicKeyLength {
		return false
	}
	ivRaw, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(ivRaw) != NonceLength {
		return false
	}
	return salt != "" && encryptedPrivateKey != ""
}
