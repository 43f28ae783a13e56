package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"

	"github.com/ozkatz/zipedit/pkg/chunkio"
)

// Pull copies the remote object to dst in ranged chunks and renames it into
// place only once every byte has arrived. It returns the digest of what was written.
func Pull(ctx context.Context, f Fetcher, fsys billy.Filesystem, dst string, chunkSize int) (digest.Digest, error) {
	start := time.Now()
	size, err := f.Size(ctx)
	if err != nil {
		return "", err
	}
	dir, base := path.Split(dst)
	if dir == "" {
		dir = "."
	}
	tmp, err := util.TempFile(fsys, dir, "."+base+".")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = fsys.Remove(tmpName)
		}
	}()

	digester := digest.Canonical.Digester()
	sink := chunkio.SequentialSink(io.MultiWriter(tmp, digester.Hash()))
	_, err = chunkio.Copy(ctx, sink, 0, chunkio.ReaderAtSource(NewReaderAt(ctx, f), 0), 0, size,
		chunkio.Options{ChunkSize: chunkSize, SkipChecksum: true})
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("pull into %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := fsys.Rename(tmpName, dst); err != nil {
		return "", err
	}
	renamed = true
	slog.Debug("pulled object", "path", dst, "size", size, "took_ms", time.Since(start).Milliseconds())
	return digester.Digest(), nil
}
