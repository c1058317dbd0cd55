package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cove/internal/server/auth"
	"cove/internal/server/config"
	"cove/internal/server/service"
	"cove/internal/server/share"
	"cove/internal/server/transfer"
	"cove/internal/server/vault"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	e     *echo.Echo
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	resolver, err := vault.NewResolver(filepath.Join(base, "files"))
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	transfers, err := transfer.NewStore(filepath.Join(base, "transfer"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create transfer store: %v", err)
	}

	quota := vault.NewQuota(1<<20, resolver.Root(), transfers.Root())
	transfers.UseQuota(quota)
	drive := service.NewDriveService(resolver, quota, service.NewRecentLog(10))
	shares := share.NewRegistry()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	authn := auth.NewAuthenticator("admin", string(hash), auth.NewThrottle(10))

	handler := NewHandler(drive, shares, transfers, authn, "admin")
	cfg := &config.Config{RateLimitRPS: 100, RateLimitBurst: 100}
	e := SetupRouter(handler, authn, cfg)

	token, err := authn.Login("127.0.0.1", "admin", "secret")
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}

	return &testEnv{e: e, token: token}
}

func (env *testEnv) do(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return env.do(t, method, target, bytes.NewBuffer(data), echo.MIMEApplicationJSON)
}

func multipartUpload(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, val := range fields {
		mw.WriteField(key, val)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAuthFlow(t *testing.T) {
	t.Run("login with valid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.doJSON(t, http.MethodPost, "/api/login", map[string]string{
			"username": "admin", "password": "secret",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "token") {
			t.Error("expected a token in the response")
		}
	})

	t.Run("login with bad credentials", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.doJSON(t, http.MethodPost, "/api/login", map[string]string{
			"username": "admin", "password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("listing requires a session", func(t *testing.T) {
		env := newTestEnv(t)
		env.token = ""
		rec := env.do(t, http.MethodGet, "/api/files", nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestFileEndpoints(t *testing.T) {
	t.Run("upload then list", func(t *testing.T) {
		env := newTestEnv(t)

		body, ctype := multipartUpload(t,
			map[string]string{"report.pdf": strings.Repeat("x", 1000)},
			map[string]string{"path": ""},
		)
		rec := env.do(t, http.MethodPost, "/api/upload", body, ctype)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		rec = env.do(t, http.MethodGet, "/api/files?path=", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var resp struct {
			Files []vault.Entry `json:"files"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode listing: %v", err)
		}
		if len(resp.Files) != 1 || resp.Files[0].Name != "report.pdf" || resp.Files[0].Size != 1000 {
			t.Errorf("unexpected listing: %+v", resp.Files)
		}
	})

	t.Run("upload with no files", func(t *testing.T) {
		env := newTestEnv(t)
		body, ctype := multipartUpload(t, nil, map[string]string{"path": ""})
		rec := env.do(t, http.MethodPost, "/api/upload", body, ctype)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("path traversal in listing is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/files?path=..%2F..%2Fetc", nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("download streams uploaded bytes", func(t *testing.T) {
		env := newTestEnv(t)
		body, ctype := multipartUpload(t,
			map[string]string{"data.bin": "exact content"},
			map[string]string{"path": ""},
		)
		env.do(t, http.MethodPost, "/api/upload", body, ctype)

		rec := env.do(t, http.MethodGet, "/api/download?path=&name=data.bin", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "exact content" {
			t.Errorf("expected exact bytes back, got %q", rec.Body.String())
		}
	})

	t.Run("download of missing entry", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/download?path=&name=ghost.bin", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("rename conflict", func(t *testing.T) {
		env := newTestEnv(t)
		body, ctype := multipartUpload(t,
			map[string]string{"a.txt": "a", "b.txt": "b"},
			map[string]string{"path": ""},
		)
		env.do(t, http.MethodPost, "/api/upload", body, ctype)

		rec := env.doJSON(t, http.MethodPost, "/api/rename", map[string]string{
			"path": "", "old_name": "a.txt", "new_name": "b.txt",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("delete then list is empty", func(t *testing.T) {
		env := newTestEnv(t)
		body, ctype := multipartUpload(t,
			map[string]string{"doomed.txt": "x"},
			map[string]string{"path": ""},
		)
		env.do(t, http.MethodPost, "/api/upload", body, ctype)

		rec := env.doJSON(t, http.MethodPost, "/api/delete", map[string]string{
			"path": "", "name": "doomed.txt",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodGet, "/api/files?path=", nil, "")
		var resp struct {
			Files []vault.Entry `json:"files"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if len(resp.Files) != 0 {
			t.Errorf("expected empty listing, got %+v", resp.Files)
		}
	})

	t.Run("storage info", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/storage", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if _, ok := resp["total_bytes"]; !ok {
			t.Error("expected total_bytes in response")
		}
	})
}

func TestShareEndpoints(t *testing.T) {
	uploadShared := func(t *testing.T, env *testEnv) string {
		body, ctype := multipartUpload(t,
			map[string]string{"shared.txt": "shared content", "private.txt": "private"},
			map[string]string{"path": "docs"},
		)
		rec := env.do(t, http.MethodPost, "/api/upload", body, ctype)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload failed: %d %s", rec.Code, rec.Body)
		}

		rec = env.doJSON(t, http.MethodPost, "/api/shares", map[string]any{
			"path": "docs", "names": []string{"shared.txt"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("share creation failed: %d %s", rec.Code, rec.Body)
		}
		var resp struct {
			ShareID string `json:"share_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		return resp.ShareID
	}

	t.Run("shared file downloads by token without a session", func(t *testing.T) {
		env := newTestEnv(t)
		id := uploadShared(t, env)

		env.token = ""
		rec := env.do(t, http.MethodGet, "/s/"+id+"/shared.txt", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if rec.Body.String() != "shared content" {
			t.Errorf("unexpected body: %q", rec.Body.String())
		}
	})

	t.Run("file outside the share set is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		id := uploadShared(t, env)

		rec := env.do(t, http.MethodGet, "/s/"+id+"/private.txt", nil, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 even though the file exists, got %d", rec.Code)
		}
	})

	t.Run("shared file deleted after sharing is not found", func(t *testing.T) {
		env := newTestEnv(t)
		id := uploadShared(t, env)

		env.doJSON(t, http.MethodPost, "/api/delete", map[string]string{
			"path": "docs", "name": "shared.txt",
		})

		rec := env.do(t, http.MethodGet, "/s/"+id+"/shared.txt", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for dangling share reference, got %d", rec.Code)
		}
	})

	t.Run("revoked share is not found", func(t *testing.T) {
		env := newTestEnv(t)
		id := uploadShared(t, env)

		rec := env.do(t, http.MethodDelete, "/api/shares/"+id, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodGet, "/s/"+id, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 after revocation, got %d", rec.Code)
		}
	})

	t.Run("share with no names", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.doJSON(t, http.MethodPost, "/api/shares", map[string]any{
			"path": "docs", "names": []string{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("share on a missing path does not create it", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.doJSON(t, http.MethodPost, "/api/shares", map[string]any{
			"path": "never-made", "names": []string{"ghost.txt"},
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body)
		}

		// The failed share creation must not have materialized the directory.
		rec = env.do(t, http.MethodGet, "/api/files?path=", nil, "")
		var resp struct {
			Files []vault.Entry `json:"files"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		for _, f := range resp.Files {
			if f.Name == "never-made" {
				t.Error("share creation created the shared directory as a side effect")
			}
		}
	})
}

func TestTransferEndpoints(t *testing.T) {
	t.Run("anonymous drop then list and download", func(t *testing.T) {
		env := newTestEnv(t)
		env.token = ""

		body, ctype := multipartUpload(t,
			map[string]string{"drop.txt": "dropped"},
			map[string]string{"uploader": "carol"},
		)
		rec := env.do(t, http.MethodPost, "/api/transfer", body, ctype)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		rec = env.do(t, http.MethodGet, "/api/transfer", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Items []struct {
				Name             string `json:"name"`
				Uploader         string `json:"uploader"`
				RemainingSeconds int64  `json:"remaining_seconds"`
			} `json:"items"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].Name != "drop.txt" || resp.Items[0].Uploader != "carol" {
			t.Fatalf("unexpected items: %+v", resp.Items)
		}
		if resp.Items[0].RemainingSeconds <= 0 || resp.Items[0].RemainingSeconds > 3600 {
			t.Errorf("unexpected remaining TTL: %d", resp.Items[0].RemainingSeconds)
		}

		rec = env.do(t, http.MethodGet, "/api/transfer/drop.txt", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "dropped" {
			t.Errorf("unexpected body: %q", rec.Body.String())
		}
	})

	t.Run("missing drop", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/transfer/ghost.txt", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("empty drop batch", func(t *testing.T) {
		env := newTestEnv(t)
		body, ctype := multipartUpload(t, nil, map[string]string{"uploader": "carol"})
		rec := env.do(t, http.MethodPost, "/api/transfer", body, ctype)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("folder drop keeps its structure", func(t *testing.T) {
		env := newTestEnv(t)
		env.token = ""

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("paths", "proj/src/main.txt")
		part, err := mw.CreateFormFile("files", "main.txt")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte("package main"))
		mw.Close()

		rec := env.do(t, http.MethodPost, "/api/transfer", &buf, mw.FormDataContentType())
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		rec = env.do(t, http.MethodGet, "/api/transfer", nil, "")
		var resp struct {
			Items []struct {
				Name    string `json:"name"`
				RelPath string `json:"relative_path"`
			} `json:"items"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(resp.Items) != 1 || resp.Items[0].Name != "main.txt" || resp.Items[0].RelPath != "proj/src" {
			t.Fatalf("unexpected items: %+v", resp.Items)
		}

		rec = env.do(t, http.MethodGet, "/api/transfer/main.txt?path=proj%2Fsrc", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "package main" {
			t.Errorf("unexpected body: %q", rec.Body.String())
		}
	})

	t.Run("drop over the quota is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.token = ""

		// The test quota is 1 MiB shared with the main tree.
		body, ctype := multipartUpload(t,
			map[string]string{"huge.bin": strings.Repeat("x", 2<<20)},
			nil,
		)
		rec := env.do(t, http.MethodPost, "/api/transfer", body, ctype)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body)
		}

		rec = env.do(t, http.MethodGet, "/api/transfer", nil, "")
		var resp struct {
			Items []struct {
				Name string `json:"name"`
			} `json:"items"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if len(resp.Items) != 0 {
			t.Errorf("expected nothing stored, got %+v", resp.Items)
		}
	})
}
