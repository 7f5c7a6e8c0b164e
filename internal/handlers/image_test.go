package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, token, field, filename, contentType string, size int) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartUpload(t, field, filename, contentType, make([]byte, size))
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", ct)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chef1", "A", "B")

	rec := env.upload(t, token, "file", "cake.png", "image/png", 10<<10)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ImageUploadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Image uploaded successfully", resp.Message)
	assert.Contains(t, resp.ImageURL, "recipe-bucket")
	assert.True(t, strings.HasSuffix(resp.ImageURL, ".png"))
	assert.Equal(t, 1, env.objects.Len())
}

func TestUploadImage_Rejections(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chef1", "A", "B")

	tests := []struct {
		name        string
		field       string
		contentType string
		size        int
		message     string
	}{
		{name: "too large", field: "file", contentType: "image/png", size: 6 << 20, message: "File size exceeds maximum limit of 5MB"},
		{name: "wrong type", field: "file", contentType: "application/pdf", size: 100, message: "Only JPG, PNG, and GIF images are allowed"},
		{name: "empty", field: "file", contentType: "image/png", size: 0, message: "File cannot be empty"},
		{name: "missing field", field: "image", contentType: "image/png", size: 100, message: "File is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(t, token, tt.field, "a.png", tt.contentType, tt.size)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Message)
		})
	}
	assert.Equal(t, 0, env.objects.Len())
}

func TestUploadImage_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, "", "file", "a.png", "image/png", 100)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadImage_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chef1", "A", "B")
	env.objects.PutErr = errors.New("bucket gone")

	rec := env.upload(t, token, "file", "a.png", "image/png", 100)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to upload image to storage", decodeError(t, rec).Message)
}

func TestDeleteImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "chef1", "A", "B")

	rec := env.upload(t, token, "file", "a.gif", "image/gif", 100)
	require.Equal(t, http.StatusOK, rec.Code)
	var uploaded ImageUploadResponse
	decode(t, rec, &uploaded)

	rec = env.do(t, http.MethodDelete, "/api/images?imageUrl="+url.QueryEscape(uploaded.ImageURL), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Image deleted successfully", resp.Message)
	assert.Equal(t, 0, env.objects.Len())

	rec = env.do(t, http.MethodDelete, "/api/images?imageUrl="+url.QueryEscape("https://elsewhere.test/a.gif"), token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid image URL format", decodeError(t, rec).Message)

	rec = env.do(t, http.MethodDelete, "/api/images", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.objects.DeleteErr = errors.New("denied")
	rec = env.do(t, http.MethodDelete, "/api/images?imageUrl="+url.QueryEscape(uploaded.ImageURL), token, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to delete image from storage", decodeError(t, rec).Message)
}
