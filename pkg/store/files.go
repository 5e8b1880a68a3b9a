package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vaultd/vaultd/pkg/models"
)

// maxWalkDepth bounds the iterative tree walks below
// against a pathological or corrupted cycle; §8 invariant 3 requires no
// cycles exist, but the walk itself must still terminate defensively.
const maxWalkDepth = 1000

// GetFile looks up a file by id.
func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	return getByField[models.File](s.db, ctx, "id", id, models.ErrFileNotFound)
}

// CreateFile inserts a new file row. The caller is responsible for assigning
// a UUID v7 id (§3): file ids are time-ordered, unlike every other entity's
// UUID v4.
func (s *GORMStore) CreateFile(ctx context.Context, file *models.File) error {
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		if isForeignKeyError(err) {
			return models.ErrInvalidParent
		}
		return err
	}
	return nil
}

// UpdateFile applies a field-scoped update (rename or move, §4.6).
func (s *GORMStore) UpdateFile(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		if isForeignKeyError(result.Error) {
			return models.ErrInvalidParent
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

// Ancestors returns the chain from id up to (and including) the root,
// depth-descending: id first, then its parent, then its grandparent, and so
// on to the null-parent root (§4.1 Ancestor walk, §4.5 Ancestor view).
func (s *GORMStore) Ancestors(ctx context.Context, id string) ([]*models.File, error) {
	var chain []*models.File
	currentID := id
	for depth := 0; depth < maxWalkDepth; depth++ {
		file, err := s.GetFile(ctx, currentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
		if file.ParentID == nil {
			return chain, nil
		}
		currentID = *file.ParentID
	}
	return chain, nil
}

// Descendants returns the subtree rooted at rootID (exclusive of rootID
// itself), depth-ascending, bounded by maxDepth (§4.1 Descendant walk; §4.5
// caps maxDepth at 20). Implemented as an iterative breadth-first walk
// batched per level rather than a single recursive CTE, so the same code
// runs unchanged against sqlite and postgres (§9's "implementors may keep
// [recursive SQL], or implement iterative walks in application code").
func (s *GORMStore) Descendants(ctx context.Context, rootID string, maxDepth int) ([]DescendantRow, error) {
	var rows []DescendantRow
	frontier := []string{rootID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var children []models.File
		if err := s.db.WithContext(ctx).Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, err
		}
		next := make([]string, 0, len(children))
		for _, c := range children {
			rows = append(rows, DescendantRow{File: c, Depth: depth})
			if c.IsDirectory {
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return rows, nil
}

// ChildrenOf returns the direct children of parentID, optionally scoped to
// an owner.
func (s *GORMStore) ChildrenOf(ctx context.Context, parentID string, ownerID *string) ([]*models.File, error) {
	q := s.db.WithContext(ctx).Where("parent_id = ?", parentID)
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var children []*models.File
	if err := q.Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

// RootFilesForOwner returns ownerID's top-level files — the contents of
// their virtual root (§4.5 Subtree view: "given a root (or owner's virtual
// root)"). parent_id IS NULL can't be expressed as an equality match, hence
// its own query rather than a call to ChildrenOf.
func (s *GORMStore) RootFilesForOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL AND owner_id = ?", ownerID).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ListOrphanedAnonymousFiles returns every owner-less file (an anonymous
// upload, §4.6) that no longer has a live share link pointing at it — the
// Janitor's §4.9 step 3 candidates for deletion.
func (s *GORMStore) ListOrphanedAnonymousFiles(ctx context.Context, now time.Time) ([]*models.File, error) {
	liveLinks := s.db.WithContext(ctx).
		Model(&models.ShareLink{}).
		Select("file_id").
		Where("expires_at IS NULL OR expires_at > ?", now)

	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("owner_id IS NULL").
		Where("id NOT IN (?)", liveLinks).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteFileCascade deletes rootID and its full subtree, returning every
// deleted non-directory file so the caller can remove their blobs (§4.6
// Delete). Deletion happens inside a transaction; the returned slice is
// still valid afterward since it's built from data read before deletion.
func (s *GORMStore) DeleteFileCascade(ctx context.Context, rootID string) ([]*models.File, error) {
	var deletedBlobs []*models.File

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		root, err := s.GetFile(ctx, rootID)
		if err != nil {
			return err
		}

		descendants, err := s.Descendants(ctx, rootID, maxWalkDepth)
		if err != nil {
			return err
		}

		ids := []string{rootID}
		for _, d := range descendants {
			ids = append(ids, d.ID)
			if !d.IsDirectory {
				row := d.File
				deletedBlobs = append(deletedBlobs, &row)
			}
		}
		if !root.IsDirectory {
			deletedBlobs = append(deletedBlobs, root)
		}

		return tx.Where("id IN ?", ids).Delete(&models.File{}).Error
	})
	if err != nil {
		return nil, err
	}
	return deletedBlobs, nil
}
