package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagreview/pkg/models"
)

type fakeCache struct {
	names  map[int64]string
	getErr error
	writes map[int64]string
}

func newFakeCache(names map[int64]string) *fakeCache {
	if names == nil {
		names = make(map[int64]string)
	}
	return &fakeCache{names: names, writes: make(map[int64]string)}
}

func (f *fakeCache) GetName(ctx context.Context, userID int64) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	name, ok := f.names[userID]
	if !ok {
		return "", ErrMiss
	}
	return name, nil
}

func (f *fakeCache) SetName(ctx context.Context, userID int64, name string) error {
	f.writes[userID] = name
	f.names[userID] = name
	return nil
}

type fakeDirectory struct {
	names   map[int64]string
	err     error
	batches [][]int64
}

func (f *fakeDirectory) LookupNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	f.batches = append(f.batches, append([]int64(nil), userIDs...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]string)
	for _, id := range userIDs {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[int64]*models.User
	err   error
	calls int
}

func (f *fakeUsers) GetUsersByIDs(ctx context.Context, userIDs []int64) ([]*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.User, 0, len(userIDs))
	for _, id := range userIDs {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestResolverResolveUsernames(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hits skip the directory and the database", func(t *testing.T) {
		cache := newFakeCache(map[int64]string{7: "Asha Nair"})
		directory := &fakeDirectory{}
		users := &fakeUsers{}
		resolver := NewResolver(users, cache, directory)

		names, err := resolver.ResolveUsernames(ctx, []int64{7})
		require.NoError(t, err)

		assert.Equal(t, map[int64]string{7: "Asha Nair"}, names)
		assert.Empty(t, directory.batches)
		assert.Zero(t, users.calls)
	})

	t.Run("directory results are written through to the cache", func(t *testing.T) {
		cache := newFakeCache(nil)
		directory := &fakeDirectory{names: map[int64]string{8: "Priya Menon"}}
		resolver := NewResolver(&fakeUsers{}, cache, directory)

		names, err := resolver.ResolveUsernames(ctx, []int64{8})
		require.NoError(t, err)

		assert.Equal(t, "Priya Menon", names[8])
		assert.Equal(t, "Priya Menon", cache.writes[8])
	})

	t.Run("falls back to local users when the directory is down", func(t *testing.T) {
		directory := &fakeDirectory{err: errors.New("connection refused")}
		users := &fakeUsers{users: map[int64]*models.User{
			9: {ID: 9, Email: "dev@plant.local", FirstName: strPtr("Ravi"), LastName: strPtr("Iyer")},
		}}
		resolver := NewResolver(users, newFakeCache(nil), directory)

		names, err := resolver.ResolveUsernames(ctx, []int64{9})
		require.NoError(t, err)

		assert.Equal(t, "Ravi Iyer", names[9])
	})

	t.Run("ids nothing knows get placeholders", func(t *testing.T) {
		resolver := NewResolver(&fakeUsers{}, newFakeCache(nil), &fakeDirectory{})

		names, err := resolver.ResolveUsernames(ctx, []int64{99})
		require.NoError(t, err)

		assert.Equal(t, "user-99", names[99])
	})

	t.Run("works without cache and directory", func(t *testing.T) {
		users := &fakeUsers{users: map[int64]*models.User{
			7: {ID: 7, Email: "asha@plant.local"},
		}}
		resolver := NewResolver(users, nil, nil)

		names, err := resolver.ResolveUsernames(ctx, []int64{7, 42})
		require.NoError(t, err)

		assert.Equal(t, "asha@plant.local", names[7])
		assert.Equal(t, "user-42", names[42])
	})

	t.Run("cache failures degrade to the next step", func(t *testing.T) {
		cache := newFakeCache(nil)
		cache.getErr = errors.New("redis timeout")
		users := &fakeUsers{users: map[int64]*models.User{
			7: {ID: 7, Email: "asha@plant.local"},
		}}
		resolver := NewResolver(users, cache, nil)

		names, err := resolver.ResolveUsernames(ctx, []int64{7})
		require.NoError(t, err)
		assert.Equal(t, "asha@plant.local", names[7])
	})

	t.Run("database failures propagate", func(t *testing.T) {
		users := &fakeUsers{err: errors.New("connection reset")}
		resolver := NewResolver(users, nil, nil)

		_, err := resolver.ResolveUsernames(ctx, []int64{7})
		assert.Error(t, err)
	})

	t.Run("mixes all sources in one pass", func(t *testing.T) {
		cache := newFakeCache(map[int64]string{1: "Cached One"})
		directory := &fakeDirectory{names: map[int64]string{2: "Directory Two"}}
		users := &fakeUsers{users: map[int64]*models.User{
			3: {ID: 3, Email: "three@plant.local"},
		}}
		resolver := NewResolver(users, cache, directory)

		names, err := resolver.ResolveUsernames(ctx, []int64{1, 2, 3, 4})
		require.NoError(t, err)

		assert.Equal(t, map[int64]string{
			1: "Cached One",
			2: "Directory Two",
			3: "three@plant.local",
			4: "user-4",
		}, names)

		// Only the cache misses should have reached the directory.
		require.Len(t, directory.batches, 1)
		assert.ElementsMatch(t, []int64{2, 3, 4}, directory.batches[0])
	})
}
