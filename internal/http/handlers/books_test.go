package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mgathogo/lendhub/internal/domain/book"
	"github.com/mgathogo/lendhub/internal/http/handlers"
	"github.com/mgathogo/lendhub/internal/utils"
)

// Keep Gin quiet during the tests

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

const zeroUUID = "00000000-0000-0000-0000-000000000000"

// Fake implementations of the handler interfaces, function fields so
// each test case overrides only what it needs.

type fakeCatalogStore struct {
	createFn     func(ctx context.Context, req book.CreateBookRequest) (book.Book, error)
	getFn        func(ctx context.Context, id string) (book.Book, error)
	updateFn     func(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error)
	listCursorFn func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error)
	countFn      func(ctx context.Context, filter book.ListBooksFilter) (int, error)
}

func (f *fakeCatalogStore) Create(ctx context.Context, req book.CreateBookRequest) (book.Book, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return book.Book{}, nil
}

func (f *fakeCatalogStore) GetByID(ctx context.Context, id string) (book.Book, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return book.Book{}, nil
}

func (f *fakeCatalogStore) Update(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return book.Book{}, nil
}

func (f *fakeCatalogStore) ListCursor(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
	if f.listCursorFn != nil {
		return f.listCursorFn(ctx, filter, afterCreatedAt, afterID)
	}
	return []book.Book{}, nil, false, nil
}

func (f *fakeCatalogStore) Count(ctx context.Context, filter book.ListBooksFilter) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, filter)
	}
	return 0, nil
}

type fakeBookWorkflow struct {
	softDeleteFn func(ctx context.Context, bookID string) error
	toggleFn     func(ctx context.Context, bookID string) (book.Book, error)
}

func (f *fakeBookWorkflow) SoftDelete(ctx context.Context, bookID string) error {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, bookID)
	}
	return nil
}

func (f *fakeBookWorkflow) ToggleAvailability(ctx context.Context, bookID string) (book.Book, error) {
	if f.toggleFn != nil {
		return f.toggleFn(ctx, bookID)
	}
	return book.Book{}, nil
}

// in-process stand-in for the redis catalog cache

type fakeListingCache struct {
	entries     map[string][]byte
	invalidated int
}

func newFakeListingCache() *fakeListingCache {
	return &fakeListingCache{entries: map[string][]byte{}}
}

func (f *fakeListingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, ok := f.entries[key]
	return payload, ok
}

func (f *fakeListingCache) Set(ctx context.Context, key string, payload []byte) {
	f.entries[key] = payload
}

func (f *fakeListingCache) Invalidate(ctx context.Context) {
	f.invalidated++
	f.entries = map[string][]byte{}
}

// small helper to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func sampleBook(id string, now time.Time) book.Book {
	return book.Book{
		ID:        id,
		Title:     "The Go Programming Language",
		Author:    "Alan Donovan",
		Category:  "programming",
		Status:    book.StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateBookHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeCatalogStore)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{
				"title": "The Go Programming Language",
				"author": "Alan Donovan",
				"category": "programming"
			}`,
			repoSetUp: func(f *fakeCatalogStore) {
				f.createFn = func(ctx context.Context, req book.CreateBookRequest) (book.Book, error) {
					b := book.NewFromCreateRequest(req)
					b.CreatedAt = now
					b.UpdatedAt = now
					return b, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "validation_error",
			body: `{"title": ""}`,
			repoSetUp: func(f *fakeCatalogStore) {
				// the repo must not be reached on an invalid payload
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: `{
				"title": "The Go Programming Language",
				"author": "Alan Donovan"
			}`,
			repoSetUp: func(f *fakeCatalogStore) {
				f.createFn = func(ctx context.Context, req book.CreateBookRequest) (book.Book, error) {
					return book.Book{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeCatalogStore{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(fakeRepo)
			}

			h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, newFakeListingCache())

			r := setupRouter(http.MethodPost, "/books", h.CreateBook)

			req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListBooksHandler(t *testing.T) {
	now := time.Now().UTC()

	validCursor, err := utils.EncodeBookCursor(now.Add(-time.Minute), "e42b6ed3-0af3-49f0-9dcd-37aa7ed8c980")
	if err != nil {
		t.Fatalf("failed to build cursor: %v", err)
	}

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeCatalogStore)
		wantStatusCode int
		wantCount      int
	}{
		{
			name: "success_first_page_no_cursor",
			url:  "/books?limit=20",
			repoSetup: func(f *fakeCatalogStore) {
				f.listCursorFn = func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
					if !afterCreatedAt.Equal(time.Unix(0, 0).UTC()) {
						return nil, nil, false, errors.New("afterCreatedAt not epoch for first page")
					}
					if afterID != zeroUUID {
						return nil, nil, false, errors.New("afterID not zero UUID for first page")
					}

					next := "next-cursor"
					return []book.Book{sampleBook("id-1", now)}, &next, true, nil
				}
				f.countFn = func(ctx context.Context, filter book.ListBooksFilter) (int, error) {
					return 1, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name: "success_with_search_query",
			url:  "/books?limit=20&q=go+programming",
			repoSetup: func(f *fakeCatalogStore) {
				f.listCursorFn = func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
					if filter.Query == nil || *filter.Query != "go programming" {
						return nil, nil, false, errors.New("query filter not passed")
					}
					return []book.Book{sampleBook("id-search-1", now)}, nil, false, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name: "success_with_valid_cursor",
			url:  "/books?limit=20&cursor=" + validCursor,
			repoSetup: func(f *fakeCatalogStore) {
				f.listCursorFn = func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
					if afterCreatedAt.Equal(time.Unix(0, 0).UTC()) {
						return nil, nil, false, errors.New("afterCreatedAt should not be epoch when cursor provided")
					}
					if afterID == "" || afterID == zeroUUID {
						return nil, nil, false, errors.New("afterID should not be empty/zero UUID when cursor provided")
					}
					return []book.Book{sampleBook("id-2", now)}, nil, false, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name:           "invalid_cursor",
			url:            "/books?cursor=!!!",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
			wantCount:      0,
		},
		{
			name:           "invalid_limit",
			url:            "/books?limit=500",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
			wantCount:      0,
		},
		{
			name: "repo_error",
			url:  "/books?limit=20",
			repoSetup: func(f *fakeCatalogStore) {
				f.listCursorFn = func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
					return nil, nil, false, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
			wantCount:      0,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeCatalogStore{}
			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, newFakeListingCache())
			r := setupRouter(http.MethodGet, "/books", h.ListBooks)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Count int `json:"count"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Count != tt.wantCount {
					t.Fatalf("got count %d, want %d", resp.Count, tt.wantCount)
				}
			}
		})
	}
}

func TestListBooksHandler_CacheHit(t *testing.T) {
	now := time.Now().UTC()

	fakeRepo := &fakeCatalogStore{}
	c := newFakeListingCache()

	calls := 0
	fakeRepo.listCursorFn = func(ctx context.Context, filter book.ListBooksFilter, afterCreatedAt time.Time, afterID string) ([]book.Book, *string, bool, error) {
		calls++
		return []book.Book{sampleBook("id-1", now)}, nil, false, nil
	}

	h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, c)
	r := setupRouter(http.MethodGet, "/books", h.ListBooks)

	// first request misses the cache and hits the repo
	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/books?limit=20", nil)
	r.ServeHTTP(w1, req1)

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	// second identical request should be served from the cache
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/books?limit=20", nil)
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Fatalf("second call got %d body=%s", w2.Code, w2.Body.String())
	}

	if calls != 1 {
		t.Fatalf("expected repo calls=1, got %d", calls)
	}

	if !bytes.Equal(w1.Body.Bytes(), w2.Body.Bytes()) {
		t.Fatalf("cached body differs from original")
	}
}

func TestGetBookByIDHandler(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()
	missingID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeCatalogStore)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/books/" + validID,
			repoSetup: func(f *fakeCatalogStore) {
				f.getFn = func(ctx context.Context, id string) (book.Book, error) {
					return sampleBook(id, now), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			url:  "/books/" + missingID,
			repoSetup: func(f *fakeCatalogStore) {
				f.getFn = func(ctx context.Context, id string) (book.Book, error) {
					return book.Book{}, book.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			url:            "/books/not-a-uuid",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			url:  "/books/" + validID,
			repoSetup: func(f *fakeCatalogStore) {
				f.getFn = func(ctx context.Context, id string) (book.Book, error) {
					return book.Book{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeCatalogStore{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, newFakeListingCache())
			r := setupRouter(http.MethodGet, "/books/:id", h.GetBookByID)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestGetBookByIDHandler_ETagNotModified(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()

	fakeRepo := &fakeCatalogStore{}
	fakeRepo.getFn = func(ctx context.Context, id string) (book.Book, error) {
		return sampleBook(id, now), nil
	}

	h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, newFakeListingCache())
	r := setupRouter(http.MethodGet, "/books/:id", h.GetBookByID)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/books/"+validID, nil)
	r.ServeHTTP(w1, req1)

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header in first response")
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/books/"+validID, nil)
	req2.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("second call got %d, want %d, body=%s", w2.Code, http.StatusNotModified, w2.Body.String())
	}

	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body for 304, got %q", w2.Body.String())
	}
}

func TestUpdateBookHandler(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()
	missingID := newUUID()

	tests := []struct {
		name           string
		url            string
		body           string
		repoSetup      func(*fakeCatalogStore)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/books/" + validID,
			body: `{
				"title": "Updated Title",
				"author": "Updated Author",
				"category": "history"
			}`,
			repoSetup: func(f *fakeCatalogStore) {
				f.updateFn = func(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error) {
					b := sampleBook(id, now)
					b.Title = req.Title
					b.Author = req.Author
					b.Category = req.Category
					return b, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			url:  "/books/" + missingID,
			body: `{
				"title": "Updated Title",
				"author": "Updated Author"
			}`,
			repoSetup: func(f *fakeCatalogStore) {
				f.updateFn = func(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error) {
					return book.Book{}, book.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "validation_error",
			url:            "/books/" + validID,
			body:           `{"title": ""}`,
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			url:  "/books/" + validID,
			body: `{
				"title": "Updated Title",
				"author": "Updated Author"
			}`,
			repoSetup: func(f *fakeCatalogStore) {
				f.updateFn = func(ctx context.Context, id string, req book.UpdateBookRequest) (book.Book, error) {
					return book.Book{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeCatalogStore{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewBooksHandler(fakeRepo, &fakeBookWorkflow{}, newFakeListingCache())

			r := setupRouter(http.MethodPut, "/books/:id", h.UpdateBook)
			req := httptest.NewRequest(http.MethodPut, tt.url, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteBookHandler(t *testing.T) {
	validID := newUUID()
	missingID := newUUID()

	tests := []struct {
		name           string
		url            string
		workflowSetup  func(*fakeBookWorkflow)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/books/" + validID,
			workflowSetup: func(f *fakeBookWorkflow) {
				f.softDeleteFn = func(ctx context.Context, bookID string) error {
					return nil
				}
			},
			wantStatusCode: http.StatusNoContent,
		},
		{
			name: "not_found",
			url:  "/books/" + missingID,
			workflowSetup: func(f *fakeBookWorkflow) {
				f.softDeleteFn = func(ctx context.Context, bookID string) error {
					return book.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			url:            "/books/not-a-uuid",
			workflowSetup:  nil,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "workflow_error",
			url:  "/books/" + validID,
			workflowSetup: func(f *fakeBookWorkflow) {
				f.softDeleteFn = func(ctx context.Context, bookID string) error {
					return errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			workflow := &fakeBookWorkflow{}

			if tt.workflowSetup != nil {
				tt.workflowSetup(workflow)
			}

			cache := newFakeListingCache()
			h := handlers.NewBooksHandler(&fakeCatalogStore{}, workflow, cache)

			r := setupRouter(http.MethodDelete, "/books/:id", h.DeleteBook)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusNoContent && cache.invalidated != 1 {
				t.Fatalf("expected one cache invalidation after delete, got %d", cache.invalidated)
			}
		})
	}
}

func TestToggleAvailabilityHandler(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()

	tests := []struct {
		name           string
		workflowSetup  func(*fakeBookWorkflow)
		wantStatusCode int
		wantErrCode    string
	}{
		{
			name: "flips_to_unavailable",
			workflowSetup: func(f *fakeBookWorkflow) {
				f.toggleFn = func(ctx context.Context, bookID string) (book.Book, error) {
					b := sampleBook(bookID, now)
					b.Status = book.StatusUnavailable
					return b, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			workflowSetup: func(f *fakeBookWorkflow) {
				f.toggleFn = func(ctx context.Context, bookID string) (book.Book, error) {
					return book.Book{}, book.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "deleted_book_conflict",
			workflowSetup: func(f *fakeBookWorkflow) {
				f.toggleFn = func(ctx context.Context, bookID string) (book.Book, error) {
					return book.Book{}, book.ErrDeleted
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrCode:    "book_deleted",
		},
		{
			name: "workflow_error",
			workflowSetup: func(f *fakeBookWorkflow) {
				f.toggleFn = func(ctx context.Context, bookID string) (book.Book, error) {
					return book.Book{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			workflow := &fakeBookWorkflow{}
			tt.workflowSetup(workflow)

			h := handlers.NewBooksHandler(&fakeCatalogStore{}, workflow, newFakeListingCache())

			r := setupRouter(http.MethodPost, "/books/:id/availability", h.ToggleAvailability)

			req := httptest.NewRequest(http.MethodPost, "/books/"+validID+"/availability", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrCode != "" {
				var resp struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal error response: %v", err)
				}
				if resp.Error.Code != tt.wantErrCode {
					t.Fatalf("got error code %q, want %q", resp.Error.Code, tt.wantErrCode)
				}
			}
		})
	}
}
