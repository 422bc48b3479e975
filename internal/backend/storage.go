package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient wraps the /storage/v1 object endpoints.
type StorageClient struct {
	c *Client
}

func objectPath(bucket, path string) (string, error) {
	bucket = strings.Trim(bucket, "/")
	path = strings.TrimLeft(path, "/")
	if bucket == "" || path == "" {
		return "", errors.New("backend: bucket and object path are required")
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("backend: invalid object path %q", path)
		}
		segs[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segs, "/"), nil
}

// Upload stores body at bucket/path and returns the object key.  With
// upsert an existing object is replaced.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) (string, error) {
	p, err := objectPath(bucket, path)
	if err != nil {
		return "", err
	}
	h := http.Header{}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "max-age=3600")
	if upsert {
		h.Set("x-upsert", "true")
	}
	resp, err := s.c.request(ctx, http.MethodPost, "/storage/v1/object/"+p, nil, body, h)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Key string `json:"Key"`
	}
	if err := decodeBody(resp.Body, &out); err != nil {
		return "", err
	}
	if out.Key == "" {
		out.Key = strings.Trim(bucket, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return out.Key, nil
}

// PublicURL is the address of an object in a public bucket.  It performs
// no request.
func (s *StorageClient) PublicURL(bucket, path string) string {
	p, err := objectPath(bucket, path)
	if err != nil {
		return ""
	}
	return s.c.baseURL + "/storage/v1/object/public/" + p
}

// PathFromPublicURL reverses PublicURL.  ok is false when u does not point
// into bucket of this project.
func (s *StorageClient) PathFromPublicURL(bucket, u string) (path string, ok bool) {
	prefix := s.c.baseURL + "/storage/v1/object/public/" + url.PathEscape(strings.Trim(bucket, "/")) + "/"
	if s.c.baseURL == "" || !strings.HasPrefix(u, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(u, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil || unescaped == "" {
		return "", false
	}
	return unescaped, true
}

// Remove deletes the given objects from bucket.
func (s *StorageClient) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	b := strings.Trim(bucket, "/")
	if b == "" {
		return errors.New("backend: bucket is required")
	}
	_, err := s.c.doJSON(ctx, http.MethodDelete, "/storage/v1/object/"+url.PathEscape(b), nil, map[string][]string{"prefixes": paths}, nil, nil)
	return err
}
