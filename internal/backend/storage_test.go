package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageUploadAndRemove(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/storage/v1/object/profile-pictures/d1/pic.png", r.URL.Path)
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			assert.Equal(t, "png-bytes", string(b))
			_, _ = io.WriteString(w, `{"Key":"profile-pictures/d1/pic.png"}`)
		case http.MethodDelete:
			assert.Equal(t, "/storage/v1/object/profile-pictures", r.URL.Path)
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"d1/old.png"}, body["prefixes"])
			_, _ = io.WriteString(w, `[]`)
		}
	})
	ctx := context.Background()

	key, err := c.Storage.Upload(ctx, "profile-pictures", "d1/pic.png", strings.NewReader("png-bytes"), "image/png", true)
	require.NoError(t, err)
	assert.Equal(t, "profile-pictures/d1/pic.png", key)
	require.NoError(t, c.Storage.Remove(ctx, "profile-pictures", "d1/old.png"))
	require.NoError(t, c.Storage.Remove(ctx, "profile-pictures"))
}

func TestStorageRejectsTraversal(t *testing.T) {
	c, err := New("https://proj.example.co", "k")
	require.NoError(t, err)
	_, err = c.Storage.Upload(context.Background(), "b", "../etc/passwd", strings.NewReader(""), "", false)
	assert.Error(t, err)
	assert.Equal(t, "", c.Storage.PublicURL("b", ""))
}

func TestPublicURLRoundTrip(t *testing.T) {
	c, err := New("https://proj.example.co/", "k")
	require.NoError(t, err)
	u := c.Storage.PublicURL("profile-pictures", "d1/my pic.png")
	assert.Equal(t, "https://proj.example.co/storage/v1/object/public/profile-pictures/d1/my%20pic.png", u)

	p, ok := c.Storage.PathFromPublicURL("profile-pictures", u+"?t=1")
	require.True(t, ok)
	assert.Equal(t, "d1/my pic.png", p)

	_, ok = c.Storage.PathFromPublicURL("profile-pictures", "https://elsewhere.example/x.png")
	assert.False(t, ok)
}
