package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagreview/internal/api/auth"
	"github.com/tagreview/pkg/models"
)

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireHTTPError(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he
}

func TestHandlersGet(t *testing.T) {
	store := newFakeStore()
	store.addContainer(3, 1)
	service := NewService(store)
	created, err := service.Create(context.Background(), CreateDTO{ContainerID: 3}, 10)
	require.NoError(t, err)
	h := NewHandlers(service)

	t.Run("found", func(t *testing.T) {
		c, rec := newTestContext(http.MethodGet, "/revisionreviews/1", "")
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatInt(created.ID, 10))

		require.NoError(t, h.get(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got DTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, int64(3), got.ContainerID)
	})

	t.Run("not found", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "/revisionreviews/999", "")
		c.SetParamNames("id")
		c.SetParamValues("999")

		he := requireHTTPError(t, h.get(c))
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "/revisionreviews/abc", "")
		c.SetParamNames("id")
		c.SetParamValues("abc")

		he := requireHTTPError(t, h.get(c))
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Contains(t, he.Message, "Invalid review ID")
	})
}

func TestHandlersList(t *testing.T) {
	store := newFakeStore()
	store.addContainer(1, 100)
	service := NewService(store)
	ctx := context.Background()
	_, err := service.Create(ctx, CreateDTO{ContainerID: 1}, 10)
	require.NoError(t, err)
	_, err = service.Create(ctx, CreateDTO{ContainerID: 1}, 11)
	require.NoError(t, err)
	h := NewHandlers(service)

	c, rec := newTestContext(http.MethodGet, "/revisionreviews", "")
	require.NoError(t, h.list(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []DTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestHandlersCreate(t *testing.T) {
	setUser := func(c echo.Context, id int64) {
		c.Set(string(auth.UserContextKey), &models.User{ID: id, Email: "approver@example.com"})
	}

	t.Run("creates and returns 201", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(7, 1)
		h := NewHandlers(NewService(store))

		c, rec := newTestContext(http.MethodPost, "/revisionreviews", `{"containerId":7,"comment":"ship it"}`)
		setUser(c, 42)

		require.NoError(t, h.create(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var got DTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(7), got.ContainerID)
		assert.Equal(t, int64(42), got.ApproverID, "approver comes from the authenticated user")
		assert.Equal(t, models.ReviewStatusPending, got.Status)
		require.NotNil(t, got.Comment)
		assert.Equal(t, "ship it", *got.Comment)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := NewHandlers(NewService(newFakeStore()))

		c, _ := newTestContext(http.MethodPost, "/revisionreviews", `{"containerId":7}`)

		he := requireHTTPError(t, h.create(c))
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("rejects a missing container id", func(t *testing.T) {
		h := NewHandlers(NewService(newFakeStore()))

		c, _ := newTestContext(http.MethodPost, "/revisionreviews", `{"comment":"no target"}`)
		setUser(c, 42)

		he := requireHTTPError(t, h.create(c))
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Contains(t, he.Message, "containerId is required")
	})

	t.Run("rejects an unknown container", func(t *testing.T) {
		store := newFakeStore()
		store.addContainer(7, 1)
		h := NewHandlers(NewService(store))

		c, _ := newTestContext(http.MethodPost, "/revisionreviews", `{"containerId":9}`)
		setUser(c, 42)

		he := requireHTTPError(t, h.create(c))
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Contains(t, he.Message.(string), "revision container not found")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		h := NewHandlers(NewService(newFakeStore()))

		c, _ := newTestContext(http.MethodPost, "/revisionreviews", `{"containerId":`)
		setUser(c, 42)

		he := requireHTTPError(t, h.create(c))
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestHandlersListForTag(t *testing.T) {
	store := newFakeStore()
	store.addContainer(1, 100)
	store.tagOwner[55] = 1
	service := NewService(store)
	_, err := service.Create(context.Background(), CreateDTO{ContainerID: 1}, 10)
	require.NoError(t, err)
	h := NewHandlers(service)

	t.Run("lists reviews on the tag's container", func(t *testing.T) {
		c, rec := newTestContext(http.MethodGet, "/revisionreviews/tag/55", "")
		c.SetParamNames("id")
		c.SetParamValues("55")

		require.NoError(t, h.listForTag(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got []DTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 1)
	})

	t.Run("non-numeric tag id", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "/revisionreviews/tag/x", "")
		c.SetParamNames("id")
		c.SetParamValues("x")

		he := requireHTTPError(t, h.listForTag(c))
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}
