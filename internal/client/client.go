// Package client implements the HTTP client used by the cove CLI to push
// files to a server's quick-transfer drop box.
package client

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"cove/internal/server/vault"
)

// ValidationError reports an unusable command-line argument.
type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// PathKind distinguishes file arguments from directory arguments.
type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

// ParsedPath is a validated local path argument.
type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

// ParseArgs validates the local paths passed on the command line.
func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no files provided"}
	}

	var out []ParsedPath
	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		kind := PathFile
		if info.IsDir() {
			kind = PathDir
		}
		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}
	return out, nil
}

// Client pushes files to a cove server.
type Client struct {
	baseURL  string
	uploader string
	http     *http.Client
}

// New creates a client for the server at baseURL; uploader labels the drops.
func New(baseURL, uploader string) *Client {
	return &Client{
		baseURL:  baseURL,
		uploader: uploader,
		http:     &http.Client{},
	}
}

// Push uploads one parsed path to the server's quick-transfer endpoint.
// Directories are zipped locally first so the drop is a single artifact.
func (c *Client) Push(p ParsedPath) (name string, err error) {
	localPath := p.FullPath
	name = filepath.Base(p.FullPath)

	if p.Kind == PathDir {
		tmpPath, cleanup, err := vault.PackageDirectory(p.FullPath)
		if err != nil {
			return "", fmt.Errorf("failed to zip directory: %w", err)
		}
		defer cleanup()
		localPath = tmpPath
		name += ".zip"
	}

	return name, c.upload(localPath, name)
}

func (c *Client) upload(localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		if c.uploader != "" {
			if err = mw.WriteField("uploader", c.uploader); err != nil {
				return
			}
		}

		var part io.Writer
		part, err = mw.CreateFormFile("files", name)
		if err != nil {
			return
		}
		if _, err = io.Copy(part, f); err != nil {
			return
		}
		err = mw.Close()
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/transfer", pr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server rejected upload: %s", resp.Status)
	}
	return nil
}
