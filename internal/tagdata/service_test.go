package tagdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagreview/pkg/models"
)

type fakeStore struct {
	projects   map[int64]*models.Project
	tags       map[int64]*models.TagData
	containers map[int64]*models.RevisionContainer
	nextID     int64
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:   make(map[int64]*models.Project),
		tags:       make(map[int64]*models.TagData),
		containers: make(map[int64]*models.RevisionContainer),
		nextID:     1,
	}
}

func (f *fakeStore) addProject(id int64) {
	f.projects[id] = &models.Project{ID: id, Name: "North Field", IsActive: true}
}

func (f *fakeStore) addTag(id, projectID int64, tagNumber string) *models.TagData {
	tag := &models.TagData{ID: id, ProjectID: projectID, TagNumber: tagNumber, Version: 1}
	f.tags[id] = tag
	return tag
}

func (f *fakeStore) GetTag(ctx context.Context, id int64) (*models.TagData, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.tags[id], nil
}

func (f *fakeStore) ListTagsForProject(ctx context.Context, projectID int64) ([]*models.TagData, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	tags := make([]*models.TagData, 0)
	for _, tag := range f.tags {
		if tag.ProjectID == projectID {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (f *fakeStore) ListTagsForContainer(ctx context.Context, containerID int64) ([]*models.TagData, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	tags := make([]*models.TagData, 0)
	for _, tag := range f.tags {
		if tag.RevisionContainerID != nil && *tag.RevisionContainerID == containerID {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (f *fakeStore) GetContainer(ctx context.Context, id int64) (*models.RevisionContainer, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.containers[id], nil
}

func (f *fakeStore) ListContainers(ctx context.Context) ([]*models.RevisionContainer, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	containers := make([]*models.RevisionContainer, 0)
	for _, container := range f.containers {
		containers = append(containers, container)
	}
	return containers, nil
}

func (f *fakeStore) CreateContainer(ctx context.Context, container *models.RevisionContainer, tagIDs []int64) error {
	if f.failWith != nil {
		return f.failWith
	}
	container.ID = f.nextID
	f.nextID++
	container.CreatedAt = time.Now()
	container.UpdatedAt = container.CreatedAt
	f.containers[container.ID] = container
	for _, tagID := range tagIDs {
		id := container.ID
		f.tags[tagID].RevisionContainerID = &id
	}
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.projects[id], nil
}

func (f *fakeStore) UpsertFAMTag(ctx context.Context, tag *models.TagData, syncedAt time.Time) error {
	return errors.New("not used in service tests")
}

func TestServiceCreateContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a container and assigns the listed tags", func(t *testing.T) {
		store := newFakeStore()
		store.addProject(1)
		store.addTag(10, 1, "P-1001")
		store.addTag(11, 1, "P-1002")
		service := NewService(store)

		container, err := service.CreateContainer(ctx, CreateContainerDTO{
			ProjectID:    1,
			Name:         "Pump Package",
			RevisionCode: "B",
			TagIDs:       []int64{10, 11},
		})
		require.NoError(t, err)

		assert.NotZero(t, container.ID)
		assert.Equal(t, "Pump Package", container.Name)
		assert.Equal(t, "B", container.RevisionCode)
		assert.Len(t, container.Tags, 2)
	})

	t.Run("trims whitespace from name and revision code", func(t *testing.T) {
		store := newFakeStore()
		store.addProject(1)
		service := NewService(store)

		container, err := service.CreateContainer(ctx, CreateContainerDTO{
			ProjectID:    1,
			Name:         "  Pump Package ",
			RevisionCode: " B ",
		})
		require.NoError(t, err)

		assert.Equal(t, "Pump Package", container.Name)
		assert.Equal(t, "B", container.RevisionCode)
	})

	t.Run("fails when the project does not exist", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		_, err := service.CreateContainer(ctx, CreateContainerDTO{ProjectID: 99, Name: "x", RevisionCode: "A"})
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.Empty(t, store.containers)
	})

	t.Run("rejects tags that belong to another project", func(t *testing.T) {
		store := newFakeStore()
		store.addProject(1)
		store.addProject(2)
		store.addTag(10, 2, "P-2001")
		service := NewService(store)

		_, err := service.CreateContainer(ctx, CreateContainerDTO{
			ProjectID:    1,
			Name:         "Pump Package",
			RevisionCode: "A",
			TagIDs:       []int64{10},
		})
		assert.ErrorIs(t, err, ErrTagNotInProject)
	})

	t.Run("rejects tags that do not exist", func(t *testing.T) {
		store := newFakeStore()
		store.addProject(1)
		service := NewService(store)

		_, err := service.CreateContainer(ctx, CreateContainerDTO{
			ProjectID:    1,
			Name:         "Pump Package",
			RevisionCode: "A",
			TagIDs:       []int64{42},
		})
		assert.ErrorIs(t, err, ErrTagNotInProject)
	})
}

func TestServiceGetTag(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the tag when present", func(t *testing.T) {
		store := newFakeStore()
		store.addTag(10, 1, "P-1001")
		service := NewService(store)

		tag, err := service.GetTag(ctx, 10)
		require.NoError(t, err)
		require.NotNil(t, tag)
		assert.Equal(t, "P-1001", tag.TagNumber)
	})

	t.Run("returns nil without error for an unknown id", func(t *testing.T) {
		service := NewService(newFakeStore())

		tag, err := service.GetTag(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, tag)
	})
}

func TestServiceGetContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("includes the tags grouped under the container", func(t *testing.T) {
		store := newFakeStore()
		store.addProject(1)
		store.addTag(10, 1, "P-1001")
		store.addTag(11, 1, "P-1002")
		service := NewService(store)

		created, err := service.CreateContainer(ctx, CreateContainerDTO{
			ProjectID:    1,
			Name:         "Pump Package",
			RevisionCode: "A",
			TagIDs:       []int64{10, 11},
		})
		require.NoError(t, err)

		container, err := service.GetContainer(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, container)
		assert.Len(t, container.Tags, 2)
	})

	t.Run("returns nil without error for an unknown id", func(t *testing.T) {
		service := NewService(newFakeStore())

		container, err := service.GetContainer(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, container)
	})
}
