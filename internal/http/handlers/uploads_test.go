package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mgathogo/lendhub/internal/http/handlers"
	"github.com/mgathogo/lendhub/internal/uploads"
)

type fakeUploader struct {
	uploadFn func(ctx context.Context, fileName string, file io.Reader) (string, error)
}

func (f *fakeUploader) Upload(ctx context.Context, fileName string, file io.Reader) (string, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, fileName, file)
	}
	return "", nil
}

func multipartBody(t *testing.T, withFile bool, fileName string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if withFile {
		fw, err := mw.CreateFormFile("file", "cover.png")
		if err != nil {
			t.Fatalf("failed to build multipart body: %v", err)
		}
		if _, err := fw.Write([]byte("png-bytes")); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}

	if fileName != "" {
		if err := mw.WriteField("fileName", fileName); err != nil {
			t.Fatalf("failed to write fileName field: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	tests := []struct {
		name           string
		withFile       bool
		fileName       string
		uploaderSetup  func(*fakeUploader)
		wantStatusCode int
	}{
		{
			name:     "success",
			withFile: true,
			fileName: "cover.png",
			uploaderSetup: func(f *fakeUploader) {
				f.uploadFn = func(ctx context.Context, fileName string, file io.Reader) (string, error) {
					if fileName != "cover.png" {
						return "", fmt.Errorf("unexpected fileName %q", fileName)
					}
					body, err := io.ReadAll(file)
					if err != nil {
						return "", err
					}
					if string(body) != "png-bytes" {
						return "", errors.New("file bytes not forwarded")
					}
					return "https://img.example.com/cover.png", nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing_file",
			withFile:       false,
			fileName:       "cover.png",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_file_name",
			withFile:       true,
			fileName:       "",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:     "image_host_down",
			withFile: true,
			fileName: "cover.png",
			uploaderSetup: func(f *fakeUploader) {
				f.uploadFn = func(ctx context.Context, fileName string, file io.Reader) (string, error) {
					return "", fmt.Errorf("upload failed: %w", uploads.ErrUpstream)
				}
			},
			wantStatusCode: http.StatusBadGateway,
		},
		{
			name:     "uploader_error",
			withFile: true,
			fileName: "cover.png",
			uploaderSetup: func(f *fakeUploader) {
				f.uploadFn = func(ctx context.Context, fileName string, file io.Reader) (string, error) {
					return "", errors.New("network error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			uploader := &fakeUploader{}
			if tt.uploaderSetup != nil {
				tt.uploaderSetup(uploader)
			}

			h := handlers.NewUploadsHandler(uploader)
			r := setupRouter(http.MethodPost, "/uploads", h.Upload)

			body, contentType := multipartBody(t, tt.withFile, tt.fileName)

			req := httptest.NewRequest(http.MethodPost, "/uploads", body)
			req.Header.Set("Content-Type", contentType)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					URL string `json:"url"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.URL != "https://img.example.com/cover.png" {
					t.Fatalf("unexpected url %q", resp.URL)
				}
			}
		})
	}
}
