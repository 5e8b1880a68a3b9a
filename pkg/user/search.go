package user

import (
	"context"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/vaultd/vaultd/pkg/models"
)

// SortMode is the §4.8 Search secondary sort applied after ranking by
// Levenshtein distance.
type SortMode string

const (
	SortBestMatch    SortMode = "best_match"
	SortAlphabetical SortMode = "alphabetical"
	SortShortest     SortMode = "shortest"
)

type scoredUser struct {
	user     models.PublicUser
	username string
	distance int
}

// Search implements §4.8 Search: ranks every user by Levenshtein distance
// from query to their username (case-insensitive), breaks ties per
// sortMode, and paginates the result.
func (s *Service) Search(ctx context.Context, query string, sortMode SortMode, limit, offset int) ([]models.PublicUser, error) {
	users, err := s.store.SearchUsers(ctx)
	if err != nil {
		return nil, err
	}

	needle := []rune(strings.ToLower(query))
	scored := make([]scoredUser, len(users))
	for i, u := range users {
		username := strings.ToLower(u.Username)
		scored[i] = scoredUser{
			user:     u.ToPublic(),
			username: username,
			distance: levenshtein.DistanceForStrings(needle, []rune(username), levenshtein.DefaultOptions),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].distance != scored[j].distance {
			return scored[i].distance < scored[j].distance
		}
		switch sortMode {
		case SortAlphabetical:
			return scored[i].username < scored[j].username
		case SortShortest:
			return len(scored[i].username) < len(scored[j].username)
		default: // SortBestMatch: distance already decided it, keep scan order.
			return false
		}
	})

	if offset >= len(scored) {
		return nil, nil
	}
	scored = scored[offset:]
	if limit > 0 && limit < len(scored) {
		scored = scored[:limit]
	}

	result := make([]models.PublicUser, len(scored))
	for i, sc := range scored {
		result[i] = sc.user
	}
	return result, nil
}
