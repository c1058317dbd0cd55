package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseArgs(t *testing.T) {
	t.Run("no args", func(t *testing.T) {
		if _, err := ParseArgs(nil); err == nil {
			t.Error("expected error for empty args")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := ParseArgs([]string{"/does/not/exist"}); err == nil {
			t.Error("expected error for missing path")
		}
	})

	t.Run("classifies files and directories", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "f.txt")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		parsed, err := ParseArgs([]string{file, dir})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(parsed) != 2 {
			t.Fatalf("expected 2 parsed paths, got %d", len(parsed))
		}
		if parsed[0].Kind != PathFile {
			t.Errorf("expected %s to be a file", file)
		}
		if parsed[1].Kind != PathDir {
			t.Errorf("expected %s to be a directory", dir)
		}
	})
}

func TestPush(t *testing.T) {
	t.Run("pushes a file as multipart", func(t *testing.T) {
		var gotName, gotUploader, gotContent string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/transfer" || r.Method != http.MethodPost {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("failed to parse multipart: %v", err)
				return
			}
			gotUploader = r.FormValue("uploader")

			f, fh, err := r.FormFile("files")
			if err != nil {
				t.Errorf("missing files part: %v", err)
				return
			}
			defer f.Close()
			gotName = fh.Filename
			data, _ := io.ReadAll(f)
			gotContent = string(data)

			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		dir := t.TempDir()
		file := filepath.Join(dir, "notes.txt")
		os.WriteFile(file, []byte("hello"), 0644)

		c := New(srv.URL, "dave")
		name, err := c.Push(ParsedPath{FullPath: file, Kind: PathFile})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "notes.txt" || gotName != "notes.txt" {
			t.Errorf("unexpected name: %q / %q", name, gotName)
		}
		if gotUploader != "dave" {
			t.Errorf("expected uploader dave, got %q", gotUploader)
		}
		if gotContent != "hello" {
			t.Errorf("expected file content, got %q", gotContent)
		}
	})

	t.Run("directory is pushed as a zip", func(t *testing.T) {
		var gotName string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseMultipartForm(1 << 20)
			if _, fh, err := r.FormFile("files"); err == nil {
				gotName = fh.Filename
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		dir := filepath.Join(t.TempDir(), "proj")
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0644)

		c := New(srv.URL, "")
		name, err := c.Push(ParsedPath{FullPath: dir, Kind: PathDir})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "proj.zip" || gotName != "proj.zip" {
			t.Errorf("expected proj.zip, got %q / %q", name, gotName)
		}
	})

	t.Run("server rejection is reported", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadRequest)
		}))
		defer srv.Close()

		dir := t.TempDir()
		file := filepath.Join(dir, "f.txt")
		os.WriteFile(file, []byte("x"), 0644)

		c := New(srv.URL, "")
		if _, err := c.Push(ParsedPath{FullPath: file, Kind: PathFile}); err == nil {
			t.Error("expected error for rejected upload")
		}
	})
}
