package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/pkg/models"
)

// Store reads users from the local database for name resolution.
type Store struct {
	db *sql.DB
}

// NewStore creates a new identity store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUsersByIDs fetches the users matching the given ids. Unknown ids are
// simply not in the result.
func (s *Store) GetUsersByIDs(ctx context.Context, userIDs []int64) ([]*models.User, error) {
	query := `
		SELECT id, email, first_name, last_name
		FROM users
		WHERE id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, len(userIDs))
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

type userStore interface {
	GetUsersByIDs(ctx context.Context, userIDs []int64) ([]*models.User, error)
}

type nameDirectory interface {
	LookupNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Resolver maps user ids to display names: cache first, then the directory
// service, then the local users table. Ids nothing knows get a "user-<id>"
// placeholder, so callers always see every id they asked for.
type Resolver struct {
	store     userStore
	cache     NameCache
	directory nameDirectory
}

// NewResolver creates a new resolver. Cache and directory may be nil; the
// corresponding steps are skipped.
func NewResolver(store userStore, cache NameCache, directory nameDirectory) *Resolver {
	return &Resolver{store: store, cache: cache, directory: directory}
}

// ResolveUsernames resolves the given ids in one batched pass.
func (r *Resolver) ResolveUsernames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(userIDs))
	missing := make([]int64, 0, len(userIDs))

	for _, id := range userIDs {
		if r.cache == nil {
			missing = append(missing, id)
			continue
		}
		name, err := r.cache.GetName(ctx, id)
		if err == nil {
			names[id] = name
			continue
		}
		if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Int64("user_id", id).Msg("name cache lookup failed")
		}
		missing = append(missing, id)
	}

	if r.directory != nil && len(missing) > 0 {
		found, err := r.directory.LookupNames(ctx, missing)
		if err != nil {
			// Directory failures degrade to the local users table.
			log.Warn().Err(err).Msg("directory lookup failed")
		} else {
			missing = r.absorb(ctx, names, missing, found)
		}
	}

	if len(missing) > 0 {
		users, err := r.store.GetUsersByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		found := make(map[int64]string, len(users))
		for _, user := range users {
			found[user.ID] = user.DisplayName()
		}
		missing = r.absorb(ctx, names, missing, found)
	}

	for _, id := range missing {
		names[id] = fmt.Sprintf("user-%d", id)
	}

	return names, nil
}

// absorb moves found names into the result, writes them through to the cache
// and returns the ids still unresolved.
func (r *Resolver) absorb(ctx context.Context, names map[int64]string, ids []int64, found map[int64]string) []int64 {
	still := make([]int64, 0, len(ids))
	for _, id := range ids {
		name, ok := found[id]
		if !ok {
			still = append(still, id)
			continue
		}
		names[id] = name
		if r.cache != nil {
			if err := r.cache.SetName(ctx, id, name); err != nil {
				log.Debug().Err(err).Int64("user_id", id).Msg("failed to cache name")
			}
		}
	}
	return still
}
