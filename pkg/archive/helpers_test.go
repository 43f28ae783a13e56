package archive_test

import (
	"bytes"
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

const testArchive = "test.zip"

var testTime = time.Date(2023, time.November, 5, 10, 20, 30, 0, time.UTC)

func newMemArchive(t *testing.T) (billy.Filesystem, *archive.Archive) {
	t.Helper()
	fsys := memfs.New()
	a, err := archive.Create(fsys, testArchive)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
	})
	return fsys, a
}

func fileEntry(name string, size int, level codec.Level) archive.NewEntry {
	return archive.NewEntry{
		Path:      name,
		Type:      archive.TypeFile,
		Size:      int64(size),
		Modified:  testTime,
		Perm:      0644,
		Level:     level,
		ChunkSize: 7,
	}
}

func addBytes(t *testing.T, a *archive.Archive, name string, data []byte, level codec.Level) {
	t.Helper()
	require.NoError(t, a.Add(context.Background(), fileEntry(name, len(data), level), chunkio.BytesSource(data)))
}

func readFile(t *testing.T, fsys billy.Filesystem, name string) []byte {
	t.Helper()
	data, err := util.ReadFile(fsys, name)
	require.NoError(t, err)
	return data
}

// requireConsistent checks the on-disk layout. The central directory must end
// where the EOCD starts, the EOCD must end the file and every record must point
// at a local header carrying the same name.
func requireConsistent(t *testing.T, data []byte) *zipfile.EndOfCentralDirectory {
	t.Helper()
	eocd, idx, err := zipfile.FindEOCD(data, 0)
	require.NoError(t, err)
	require.Equal(t, int64(idx), eocd.CDEnd())
	require.Equal(t, len(data), int(eocd.CDEnd())+eocd.Len())

	records, err := zipfile.DecodeCentralDirectory(data[eocd.CDOffset:eocd.CDEnd()])
	require.NoError(t, err)
	require.Len(t, records, int(eocd.TotalEntries))
	for _, r := range records {
		lfh, err := zipfile.DecodeLocalFileHeader(data[r.LocalHeaderOffset:])
		require.NoError(t, err)
		require.Equal(t, r.FileName, lfh.FileName)
		if r.Flags&zipfile.FlagDataDescriptor == 0 {
			require.Equal(t, r.CRC32, lfh.CRC32)
			require.Equal(t, r.CompressedSize, lfh.CompressedSize)
		}
	}
	return eocd
}

func entryNames(t *testing.T, a *archive.Archive) []string {
	t.Helper()
	entries, err := a.Entries(context.Background())
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Path
	}
	return names
}

func readEntry(t *testing.T, a *archive.Archive, name string) []byte {
	t.Helper()
	e, err := a.Entry(context.Background(), name)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = a.ReadEntry(context.Background(), e, &buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// noReplaceFS refuses to rename over existing files, like filesystems without
// an atomic replace primitive.
type noReplaceFS struct {
	billy.Filesystem
	renames int
}

func (n *noReplaceFS) Rename(from, to string) error {
	if _, err := n.Filesystem.Stat(to); err == nil {
		return fs.ErrExist
	}
	n.renames++
	return n.Filesystem.Rename(from, to)
}

// reopenFailFS refuses to open any file once a rename has happened.
type reopenFailFS struct {
	billy.Filesystem
	renamed bool
}

func (r *reopenFailFS) Rename(from, to string) error {
	if err := r.Filesystem.Rename(from, to); err != nil {
		return err
	}
	r.renamed = true
	return nil
}

func (r *reopenFailFS) OpenFile(name string, flag int, perm fs.FileMode) (billy.File, error) {
	if r.renamed {
		return nil, fs.ErrPermission
	}
	return r.Filesystem.OpenFile(name, flag, perm)
}
