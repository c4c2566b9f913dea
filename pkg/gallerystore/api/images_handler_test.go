package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
	memorystorage "github.com/Maidang1/lumina-store/pkg/gallerystore/storage/memory"
)

func testID(n byte) string {
	return "sha256:" + strings.Repeat(fmt.Sprintf("%02x", n), 32)
}

func setupHandler(t *testing.T) *ImagesHandler {
	t.Helper()
	remote := memorystorage.New("main")
	store, err := gallerystore.New(
		gallerystore.WithRemote(remote),
		gallerystore.WithGitDatabase(remote),
		gallerystore.WithBranch("main"),
		gallerystore.WithBatchBackoff(time.Millisecond),
	)
	require.NoError(t, err)
	return NewImagesHandler(store, nil)
}

func uploadBody(t *testing.T, rec *gallerystore.AssetRecord, deferred bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("meta", string(meta)))
	if deferred {
		require.NoError(t, mw.WriteField("defer_finalize", "true"))
	}

	orig, err := mw.CreateFormFile("original", "photo.jpg")
	require.NoError(t, err)
	orig.Write([]byte("jpeg-bytes"))

	thumb, err := mw.CreateFormFile("thumb", "thumb.webp")
	require.NoError(t, err)
	thumb.Write([]byte("webp-bytes"))

	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func draftRecord(id string) *gallerystore.AssetRecord {
	return &gallerystore.AssetRecord{
		ImageID:  id,
		FileName: "photo.jpg",
		Timestamps: gallerystore.Timestamps{
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Files: gallerystore.AssetFiles{
			Original: gallerystore.FileRef{Mime: "image/jpeg"},
			Thumb:    gallerystore.FileRef{Mime: "image/webp", Width: 256, Height: 256},
		},
	}
}

func uploadOne(t *testing.T, h *ImagesHandler, id string) {
	t.Helper()
	body, contentType := uploadBody(t, draftRecord(id), false)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestUploadImage(t *testing.T) {
	t.Run("created with derived paths", func(t *testing.T) {
		h := setupHandler(t)
		body, contentType := uploadBody(t, draftRecord(testID(0xaa)), false)

		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var rec gallerystore.AssetRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.Equal(t, testID(0xaa), rec.ImageID)
		assert.Contains(t, rec.Files.Original.Path, "objects/aa/aa/")
		assert.Equal(t, int64(len("jpeg-bytes")), rec.Files.Original.Bytes)
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		h := setupHandler(t)
		body, contentType := uploadBody(t, draftRecord("not-a-content-id"), false)

		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing file part is a bad request", func(t *testing.T) {
		h := setupHandler(t)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		meta, _ := json.Marshal(draftRecord(testID(0xbb)))
		require.NoError(t, mw.WriteField("meta", string(meta)))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "original")
	})

	t.Run("invalid meta json is a bad request", func(t *testing.T) {
		h := setupHandler(t)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("meta", "{not json"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetImage(t *testing.T) {
	h := setupHandler(t)
	uploadOne(t, h, testID(0x01))

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/"+testID(0x01), nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var rec gallerystore.AssetRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.Equal(t, testID(0x01), rec.ImageID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/"+testID(0x7f), nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/garbage", nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestListImages(t *testing.T) {
	h := setupHandler(t)
	for i := byte(1); i <= 5; i++ {
		uploadOne(t, h, testID(i))
	}

	t.Run("pages through with cursor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=3", nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var page gallerystore.ListResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
		require.Len(t, page.Items, 3)
		require.NotEmpty(t, page.NextCursor)

		req = httptest.NewRequest(http.MethodGet, "/?limit=3&cursor="+page.NextCursor, nil)
		rr = httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var rest gallerystore.ListResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rest))
		assert.Len(t, rest.Items, 2)
		assert.Empty(t, rest.NextCursor)
	})

	t.Run("malformed cursor is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?cursor=%21%21%21", nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("non-positive limit is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUpdateImage(t *testing.T) {
	h := setupHandler(t)
	uploadOne(t, h, testID(0x02))

	body := strings.NewReader(`{"description": "sunset", "category": "travel"}`)
	req := httptest.NewRequest(http.MethodPatch, "/"+testID(0x02), body)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec gallerystore.AssetRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "sunset", rec.Description)
	assert.Equal(t, "travel", rec.Category)
	assert.Equal(t, "photo.jpg", rec.FileName) // untouched field survives
}

func TestDeleteImage(t *testing.T) {
	h := setupHandler(t)
	uploadOne(t, h, testID(0x03))

	req := httptest.NewRequest(http.MethodDelete, "/"+testID(0x03), nil)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result gallerystore.DeleteResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Len(t, result.RemovedPaths, 3)
	assert.True(t, result.IndexUpdated)

	// The record is gone afterwards.
	req = httptest.NewRequest(http.MethodGet, "/"+testID(0x03), nil)
	rr = httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFinalizeBatch(t *testing.T) {
	h := setupHandler(t)

	// Two deferred uploads: files land, metadata and index wait for the batch.
	records := make([]*gallerystore.AssetRecord, 0, 2)
	for i := byte(0x10); i < 0x12; i++ {
		body, contentType := uploadBody(t, draftRecord(testID(i)), true)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.Routes().ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var rec gallerystore.AssetRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		records = append(records, &rec)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	listRR := httptest.NewRecorder()
	h.Routes().ServeHTTP(listRR, listReq)
	var before gallerystore.ListResult
	require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &before))
	assert.Empty(t, before.Items)

	payload, err := json.Marshal(FinalizeBatchRequest{Records: records})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/finalize", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	listRR = httptest.NewRecorder()
	h.Routes().ServeHTTP(listRR, httptest.NewRequest(http.MethodGet, "/?limit=10", nil))
	var after gallerystore.ListResult
	require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &after))
	assert.Len(t, after.Items, 2)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "image not found", err: gallerystore.ErrImageNotFound, want: http.StatusNotFound},
		{name: "remote conflict", err: gallerystore.ErrRemoteConflict, want: http.StatusConflict},
		{name: "ref conflict", err: gallerystore.ErrRefConflict, want: http.StatusConflict},
		{name: "batch exhausted", err: gallerystore.ErrBatchExhausted, want: http.StatusBadGateway},
		{name: "malformed cursor", err: gallerystore.ErrMalformedCursor, want: http.StatusBadRequest},
		{name: "upstream 503", err: &gallerystore.RemoteError{Op: "put", Status: 503, Err: fmt.Errorf("down")}, want: http.StatusBadGateway},
		{name: "upstream 429", err: &gallerystore.RemoteError{Op: "put", Status: 429, Err: fmt.Errorf("limited")}, want: http.StatusBadGateway},
		{name: "anything else", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
