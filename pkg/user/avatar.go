package user

import (
	"context"
	"io"

	"github.com/vaultd/vaultd/pkg/blobstore"
	"github.com/vaultd/vaultd/pkg/models"
)

// MaxAvatarSize bounds a pre-processed avatar upload (C.1: the client has
// already center-cropped and resized to 256x256; this is a generous ceiling
// against a misbehaving client, not a real image-size budget).
const MaxAvatarSize = 2 << 20

// allowedAvatarExtensions are the declared content types the server accepts
// verbatim (C.1: image processing itself is an out-of-scope collaborator).
var allowedAvatarExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// UploadAvatar implements C.1 (PUT /api/profile/upload): validates the
// declared extension and a maximum size, stores the bytes verbatim under
// avatars/{user_id}.{ext}, and records the extension on the user row.
func (s *Service) UploadAvatar(ctx context.Context, userID, ext string, body io.Reader) error {
	if !allowedAvatarExtensions[ext] {
		return models.ErrInvalidCredentials
	}

	limited := io.LimitReader(body, MaxAvatarSize+1)
	counted := &countingReader{r: limited}
	if err := s.blobs.WriteStream(ctx, blobstore.AvatarPath(userID, ext), counted); err != nil {
		return err
	}
	if counted.n > MaxAvatarSize {
		_ = s.blobs.Remove(ctx, blobstore.AvatarPath(userID, ext))
		return models.ErrInvalidCredentials
	}

	return s.store.UpdateAvatar(ctx, userID, ext)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
