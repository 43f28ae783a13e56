package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
)

func TestEntryHandler(t *testing.T) {
	a, err := archive.Create(memfs.New(), "served.zip")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	content := bytes.Repeat([]byte("served over http "), 20)
	require.NoError(t, a.Add(context.Background(), archive.NewEntry{
		Path: "docs/page.txt", Type: archive.TypeFile, Size: int64(len(content)),
		Modified: time.Now(), Perm: 0644, Level: codec.LevelDefault,
	}, chunkio.BytesSource(content)))
	require.NoError(t, a.Add(context.Background(), archive.NewEntry{
		Path: "docs", Type: archive.TypeDirectory, Modified: time.Now(), Perm: 0755,
	}, nil))

	srv := httptest.NewServer(&entryHandler{archive: a})
	defer srv.Close()

	get := func(query string) (int, []byte) {
		resp, err := http.Get(srv.URL + "/" + query)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, body
	}

	status, body := get("?filename=docs/page.txt")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, content, body)

	status, _ = get("?filename=missing.txt")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = get("?filename=docs/")
	require.Equal(t, http.StatusBadRequest, status)

	status, body = get("")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "docs/page.txt")
}
