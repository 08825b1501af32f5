package file

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *memMetadataStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	meta := newMemMetadataStore()
	service := newTestService(newFakeBlobStore(), meta)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), service)
	return router, meta
}

func multipartBody(t *testing.T, pin string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if pin != "" {
		require.NoError(t, writer.WriteField("pin", pin))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadEndpointWithPin(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "1234", map[string]string{"notes.txt": "hello world"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Success bool     `json:"success"`
		Files   []Record `json:"files"`
		Message string   `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "notes.txt", resp.Files[0].OriginalName)
	assert.Equal(t, int64(11), resp.Files[0].Size)
	assert.Equal(t, "1234", resp.Files[0].Pin.Value())
	assert.NotEmpty(t, resp.Files[0].DownloadURL)
	assert.Contains(t, resp.Message, "1 file(s)")
}

func TestUploadEndpointRejectsEmptyBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "", map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "No files uploaded")
}

func TestListByPinEndpointSortsBySize(t *testing.T) {
	router, _ := newTestRouter(t)

	for name, content := range map[string]string{
		"ten.bin":    strings.Repeat("x", 10),
		"five.bin":   strings.Repeat("x", 5),
		"twenty.bin": strings.Repeat("x", 20),
	} {
		body, contentType := multipartBody(t, "55", map[string]string{name: content})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/files/55?sortBy=size&order=asc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Files []Record `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 3)
	assert.Equal(t, []int64{5, 10, 20}, []int64{resp.Files[0].Size, resp.Files[1].Size, resp.Files[2].Size})
}

func TestAnonymousFilesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "", map[string]string{"anon.txt": "data"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/anonymous-files", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Files []Record `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.False(t, resp.Files[0].Pin.Assigned())
}

func TestAssignPinEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "", map[string]string{"anon.txt": "data"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var uploadResp struct {
		Files []Record `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploadResp))
	require.Len(t, uploadResp.Files, 1)

	// numeric ids arrive as JSON numbers from the relational-backed UI
	payload := []byte(`{"pin":"31337","fileIds":[` + uploadResp.Files[0].ID + `]}`)
	req = httptest.NewRequest(http.MethodPost, "/api/assign-pin", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "PIN assigned to 1 file(s)")

	req = httptest.NewRequest(http.MethodGet, "/api/files/31337", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var listResp struct {
		Files []Record `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	require.Len(t, listResp.Files, 1)
}

func TestAssignPinEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"missing pin", `{"fileIds":["1"]}`, "PIN is required"},
		{"missing ids", `{"pin":"1234"}`, "File IDs are required"},
		{"empty ids", `{"pin":"1234","fileIds":[]}`, "File IDs are required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/assign-pin", strings.NewReader(tc.payload))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.want)
		})
	}
}
