package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"
)

var (
	_ Fetcher   = &LocalFetcher{}
	_ Publisher = &LocalPublisher{}
)

type LocalFetcher struct {
	fs   billy.Filesystem
	path string
}

func NewLocalFetcher(fsys billy.Filesystem, uri string) (*LocalFetcher, error) {
	filePath, err := localParseUri(uri)
	if err != nil {
		return nil, err
	}
	return &LocalFetcher{fs: fsys, path: filePath}, nil
}

func (l *LocalFetcher) Size(_ context.Context) (int64, error) {
	info, err := l.fs.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrDoesNotExist, l.path)
	} else if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (l *LocalFetcher) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	handle, err := l.fs.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDoesNotExist, l.path)
	} else if err != nil {
		return nil, err
	}

	var start, length int64 = 0, -1
	switch {
	case startOffset != nil && endOffset != nil:
		start, length = *startOffset, *endOffset+1-*startOffset
	case startOffset != nil:
		start = *startOffset
	case endOffset != nil:
		// only end offset, read the last endOffset bytes
		size, err := l.Size(ctx)
		if err != nil {
			_ = handle.Close()
			return nil, err
		}
		start = max(size-*endOffset, 0)
	}
	if _, err := handle.Seek(start, io.SeekStart); err != nil {
		_ = handle.Close()
		return nil, err
	}
	if length < 0 {
		return handle, nil
	}
	return &localReader{
		original:    handle,
		limitReader: io.LimitReader(handle, length),
	}, nil
}

type localReader struct {
	original    io.Closer
	limitReader io.Reader
}

func (l *localReader) Read(p []byte) (n int, err error) {
	return l.limitReader.Read(p)
}

func (l *localReader) Close() error {
	return l.original.Close()
}

// LocalPublisher writes the object to a temporary file next to the
// destination and renames it into place once it is complete.
type LocalPublisher struct {
	fs   billy.Filesystem
	path string
}

func NewLocalPublisher(fsys billy.Filesystem, uri string) (*LocalPublisher, error) {
	filePath, err := localParseUri(uri)
	if err != nil {
		return nil, err
	}
	return &LocalPublisher{fs: fsys, path: filePath}, nil
}

func (l *LocalPublisher) Publish(_ context.Context, obj *Upload) error {
	dir, base := path.Split(l.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := util.TempFile(l.fs, dir, "."+base+".")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = l.fs.Remove(tmpName)
		}
	}()

	w := io.Writer(tmp)
	var verifier digest.Verifier
	if obj.Digest != "" {
		verifier = obj.Digest.Verifier()
		w = io.MultiWriter(tmp, verifier)
	}
	n, err := io.Copy(w, obj.Body)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if obj.Size >= 0 && n != obj.Size {
		return fmt.Errorf("write %s: %w: wrote %d of %d bytes", tmpName, io.ErrUnexpectedEOF, n, obj.Size)
	}
	if verifier != nil && !verifier.Verified() {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, obj.Digest)
	}
	if err := l.fs.Rename(tmpName, l.path); err != nil {
		return err
	}
	renamed = true
	slog.Debug("published local object", "path", l.path, "size", n, "digest", obj.Digest)
	return nil
}

func localParseUri(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return path.Clean(path.Join(parsed.Host, parsed.Path)), nil
}
