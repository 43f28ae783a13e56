package remote_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/remote"
)

func newLoremServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lorem.txt" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "lorem.txt", time.Time{}, bytes.NewReader([]byte(lorem)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHttpFetcher(t *testing.T) {
	ctx := context.Background()
	srv := newLoremServer(t)
	f, err := remote.NewHttpFetcher(srv.URL + "/lorem.txt")
	require.NoError(t, err)

	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, len(lorem), size)

	r, err := f.Fetch(ctx, int64p(0), int64p(10))
	require.NoError(t, err)
	require.Equal(t, "Lorem ipsum", string(readAll(t, r)))

	r, err = f.Fetch(ctx, nil, int64p(7))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(lorem, string(readAll(t, r))))

	r, err = f.Fetch(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, lorem, string(readAll(t, r)))
}

func TestHttpFetcher_NotFound(t *testing.T) {
	srv := newLoremServer(t)
	f, err := remote.NewHttpFetcher(srv.URL + "/missing.zip")
	require.NoError(t, err)
	_, err = f.Size(context.Background())
	require.ErrorIs(t, err, remote.ErrDoesNotExist)
	_, err = f.Fetch(context.Background(), int64p(0), int64p(1))
	require.ErrorIs(t, err, remote.ErrDoesNotExist)
}
