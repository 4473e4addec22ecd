package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagreview/pkg/models"
)

// fakeStore is an in-memory reviewStore for service tests.
type fakeStore struct {
	reviews    []*models.RevisionContainerReview
	containers map[int64]*models.RevisionContainer
	tagOwner   map[int64]int64 // tag id -> owning container id
	nextID     int64
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		containers: make(map[int64]*models.RevisionContainer),
		tagOwner:   make(map[int64]int64),
	}
}

func (f *fakeStore) addContainer(id, projectID int64) {
	f.containers[id] = &models.RevisionContainer{
		ID:           id,
		ProjectID:    projectID,
		Name:         "Container",
		RevisionCode: "A",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.RevisionContainerReview, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, r := range f.reviews {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context) ([]*models.RevisionContainerReview, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]*models.RevisionContainerReview{}, f.reviews...), nil
}

func (f *fakeStore) ListForTag(_ context.Context, tagID int64) ([]*models.RevisionContainerReview, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	containerID, ok := f.tagOwner[tagID]
	if !ok {
		return []*models.RevisionContainerReview{}, nil
	}
	out := make([]*models.RevisionContainerReview, 0)
	for _, r := range f.reviews {
		if r.RevisionContainerID == containerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListForProject(_ context.Context, projectID int64) ([]*models.RevisionContainerReview, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]*models.RevisionContainerReview, 0)
	for _, r := range f.reviews {
		container, ok := f.containers[r.RevisionContainerID]
		if ok && container.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, review *models.RevisionContainerReview) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	review.ID = f.nextID
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	f.reviews = append(f.reviews, review)
	return nil
}

func (f *fakeStore) GetContainer(_ context.Context, id int64) (*models.RevisionContainer, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.containers[id], nil
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending review for an existing container", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(7, 1)
		service := NewService(store)

		dto, err := service.Create(ctx, CreateDTO{ContainerID: 7}, 42)
		require.NoError(t, err)
		require.NotNil(t, dto)

		assert.Equal(t, int64(7), dto.ContainerID, "returned container id should match the request")
		assert.Equal(t, int64(42), dto.ApproverID, "requester becomes the approver")
		assert.Equal(t, models.ReviewStatusPending, dto.Status)
		assert.NotZero(t, dto.ID)
	})

	t.Run("fails when the container does not exist", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(7, 1)
		service := NewService(store)

		dto, err := service.Create(ctx, CreateDTO{ContainerID: 9}, 42)
		assert.ErrorIs(t, err, ErrContainerNotFound)
		assert.Nil(t, dto)
		assert.Empty(t, store.reviews, "nothing should be persisted on validation failure")
	})

	t.Run("allows duplicate reviews for the same container", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(7, 1)
		service := NewService(store)

		first, err := service.Create(ctx, CreateDTO{ContainerID: 7}, 42)
		require.NoError(t, err)
		second, err := service.Create(ctx, CreateDTO{ContainerID: 7}, 43)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Len(t, store.reviews, 2)
	})

	t.Run("propagates store failures", func(t *testing.T) {
		store := newFakeStore()
		store.failWith = errors.New("connection reset")
		service := NewService(store)

		_, err := service.Create(ctx, CreateDTO{ContainerID: 7}, 42)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrContainerNotFound)
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the review when present", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(3, 1)
		service := NewService(store)

		created, err := service.Create(ctx, CreateDTO{ContainerID: 3}, 10)
		require.NoError(t, err)

		got, err := service.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, int64(3), got.ContainerID)
	})

	t.Run("returns nil for an unknown id", func(t *testing.T) {
		service := NewService(newFakeStore())

		got, err := service.Get(ctx, 999)
		require.NoError(t, err, "an absent review is not an error")
		assert.Nil(t, got)
	})
}

func TestServiceListForTag(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addContainer(1, 100)
	store.addContainer(2, 100)
	store.tagOwner[55] = 1
	service := NewService(store)

	// Two reviews on container 1, one on container 2.
	_, err := service.Create(ctx, CreateDTO{ContainerID: 1}, 10)
	require.NoError(t, err)
	_, err = service.Create(ctx, CreateDTO{ContainerID: 2}, 11)
	require.NoError(t, err)
	_, err = service.Create(ctx, CreateDTO{ContainerID: 1}, 12)
	require.NoError(t, err)

	dtos, err := service.ListForTag(ctx, 55)
	require.NoError(t, err)
	require.Len(t, dtos, 2, "only reviews on the tag's container")

	ids := []int64{dtos[0].ID, dtos[1].ID}
	if diff := cmp.Diff([]int64{1, 3}, ids); diff != "" {
		t.Errorf("store order not preserved (-want +got):\n%s", diff)
	}

	t.Run("tag without a container has no reviews", func(t *testing.T) {
		dtos, err := service.ListForTag(ctx, 77)
		require.NoError(t, err)
		assert.Empty(t, dtos)
	})
}

func TestServiceListForProject(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addContainer(1, 100)
	store.addContainer(2, 200)
	service := NewService(store)

	_, err := service.Create(ctx, CreateDTO{ContainerID: 1}, 10)
	require.NoError(t, err)
	_, err = service.Create(ctx, CreateDTO{ContainerID: 2}, 11)
	require.NoError(t, err)

	dtos, err := service.ListForProject(ctx, 100)
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, int64(1), dtos[0].ContainerID)
}
