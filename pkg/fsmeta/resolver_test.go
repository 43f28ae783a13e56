package fsmeta_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/fsmeta"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

func TestResolve(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "data/file.txt", []byte("twelve bytes"), 0640))
	require.NoError(t, fsys.MkdirAll("data/sub", 0755))
	require.NoError(t, fsys.Symlink("file.txt", "data/link"))

	t.Run("regular file", func(t *testing.T) {
		m, err := fsmeta.Resolve(fsys, "data/file.txt")
		require.NoError(t, err)
		require.Equal(t, zipfile.TypeFile, m.Type)
		require.EqualValues(t, 12, m.Size)
		require.Equal(t, "data/file.txt", m.Path)
		require.Empty(t, m.LinkTarget)
	})
	t.Run("directory", func(t *testing.T) {
		m, err := fsmeta.Resolve(fsys, "data/sub")
		require.NoError(t, err)
		require.Equal(t, zipfile.TypeDirectory, m.Type)
		require.Zero(t, m.Size)
	})
	t.Run("symlink", func(t *testing.T) {
		m, err := fsmeta.Resolve(fsys, "data/link")
		require.NoError(t, err)
		require.Equal(t, zipfile.TypeSymlink, m.Type)
		require.Equal(t, "file.txt", m.LinkTarget)
		require.EqualValues(t, len("file.txt"), m.Size)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := fsmeta.Resolve(fsys, "data/nope")
		require.Error(t, err)
	})
}

func TestFileSource(t *testing.T) {
	fsys := memfs.New()
	content := bytes.Repeat([]byte("0123456789"), 20)
	require.NoError(t, util.WriteFile(fsys, "payload.bin", content, 0644))

	f, err := fsmeta.Open(fsys, "payload.bin")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sink := chunkio.NewBufferSink(len(content))
	crc, err := chunkio.Copy(context.Background(), sink, 0, f.Source(), 0, int64(len(content)), chunkio.Options{ChunkSize: 16})
	require.NoError(t, err)
	require.Equal(t, content, sink.Bytes())
	require.Equal(t, chunkio.Checksum(content), crc)
}
