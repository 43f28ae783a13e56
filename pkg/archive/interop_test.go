package archive_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/archive"
	"github.com/ozkatz/zipedit/pkg/codec"
)

func readZip(t *testing.T, data []byte) map[string]*zip.File {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}
	return files
}

func zipContent(t *testing.T, f *zip.File) []byte {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestInterop_StdlibReadsOurArchives(t *testing.T) {
	fsys := osfs.New(t.TempDir(), osfs.WithBoundOS())
	path := "interop.zip"
	a, err := archive.Create(fsys, path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	stored := []byte("stored as is")
	deflated := bytes.Repeat([]byte("deflated content "), 64)
	addBytes(t, a, "stored.txt", stored, codec.LevelStore)
	addBytes(t, a, "deflated.txt", deflated, codec.LevelBest)
	addBytes(t, a, "empty.txt", nil, codec.LevelDefault)
	require.NoError(t, a.Add(context.Background(), archive.NewEntry{
		Path: "dir", Type: archive.TypeDirectory, Modified: testTime, Perm: 0750,
	}, nil))
	require.NoError(t, a.Add(context.Background(), archive.NewEntry{
		Path: "dir/link", Type: archive.TypeSymlink, Modified: testTime, Perm: 0777, LinkTarget: "../stored.txt",
	}, nil))

	files := readZip(t, readFile(t, fsys, path))
	require.Len(t, files, 5)
	require.Equal(t, stored, zipContent(t, files["stored.txt"]))
	require.Equal(t, deflated, zipContent(t, files["deflated.txt"]))
	require.Equal(t, zip.Deflate, files["deflated.txt"].Method)
	require.Equal(t, zip.Store, files["empty.txt"].Method)
	require.Empty(t, zipContent(t, files["empty.txt"]))
	require.Equal(t, fs.FileMode(0644), files["stored.txt"].Mode())
	require.True(t, files["dir/"].Mode().IsDir())
	require.Equal(t, fs.FileMode(0750), files["dir/"].Mode().Perm())
	require.Equal(t, fs.ModeSymlink, files["dir/link"].Mode().Type())
	require.Equal(t, []byte("../stored.txt"), zipContent(t, files["dir/link"]))
	require.True(t, testTime.Equal(files["stored.txt"].Modified))

	e, err := a.Entry(context.Background(), "deflated.txt")
	require.NoError(t, err)
	require.NoError(t, a.Remove(context.Background(), e, 0))

	files = readZip(t, readFile(t, fsys, path))
	require.Len(t, files, 4)
	require.NotContains(t, files, "deflated.txt")
	require.Equal(t, stored, zipContent(t, files["stored.txt"]))
}

func stdlibArchive(t *testing.T, withComment bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range []struct {
		name   string
		body   string
		method uint16
	}{
		{"first.txt", "written by archive/zip", zip.Deflate},
		{"second.txt", "also written by archive/zip", zip.Store},
		{"third.txt", "and one more for good measure", zip.Deflate},
	} {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method, Modified: testTime})
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.body)
		require.NoError(t, err)
	}
	if withComment {
		require.NoError(t, w.SetComment("stdlib comment"))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestInterop_EditStdlibArchive(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, testArchive, stdlibArchive(t, true), 0644))

	a, err := archive.Open(fsys, testArchive)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	require.Equal(t, []string{"first.txt", "second.txt", "third.txt"}, entryNames(t, a))

	// entries written by archive/zip carry trailing data descriptors
	e, err := a.Entry(context.Background(), "second.txt")
	require.NoError(t, err)
	require.Equal(t, e.HeaderSize+e.CompressedSize+16, e.LocalSize)
	require.Equal(t, []byte("also written by archive/zip"), readEntry(t, a, "second.txt"))
	require.Equal(t, []byte("written by archive/zip"), readEntry(t, a, "first.txt"))

	require.NoError(t, a.Remove(context.Background(), e, 0))
	addBytes(t, a, "fourth.txt", []byte("appended by us"), codec.LevelDefault)

	data := readFile(t, fsys, testArchive)
	requireConsistent(t, data)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, "stdlib comment", r.Comment)

	files := readZip(t, data)
	require.Len(t, files, 3)
	require.Equal(t, []byte("written by archive/zip"), zipContent(t, files["first.txt"]))
	require.Equal(t, []byte("and one more for good measure"), zipContent(t, files["third.txt"]))
	require.Equal(t, []byte("appended by us"), zipContent(t, files["fourth.txt"]))
}
