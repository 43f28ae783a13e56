package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

// Remove rewrites the archive without target. Every other entry's local
// header and payload are copied verbatim into a temporary archive next to the
// original, their central directory records are renumbered to the new
// offsets, and the temporary file then replaces the original.
//
// Failures before the replace leave the original untouched and discard the
// temporary file.
func (a *Archive) Remove(ctx context.Context, target *Entry, chunkSize int) error {
	if a.readOnly {
		return ErrArchiveNotWritable
	}
	if target == nil {
		return fmt.Errorf("%w: nil entry", ErrEntryNotFound)
	}
	if chunkSize <= 0 {
		chunkSize = a.chunkSize
	}
	start := time.Now()
	entries, err := a.Entries(ctx)
	if err != nil {
		return err
	}
	var victim *Entry
	for _, e := range entries {
		if e.same(target) {
			victim = e
			break
		}
	}
	if victim == nil {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, target.Path)
	}

	tmpPath := a.tempPath()
	tmp, err := Create(a.fs, tmpPath, WithChunkSize(chunkSize))
	if err != nil {
		return err
	}
	keepTemp := false
	defer func() {
		_ = tmp.Close()
		if !keepTemp {
			_ = a.fs.Remove(tmpPath)
		}
	}()

	eocd, err := a.copyWithout(ctx, tmp, entries, victim, chunkSize)
	if err != nil {
		return err
	}
	if err := tmp.sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	// the original handle must be released before the file can be replaced on every platform
	if err := a.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := replaceFile(a.fs, tmpPath, a.path); err != nil {
		if errors.Is(err, ErrReplaceIncomplete) {
			// the temporary file is the only surviving copy
			keepTemp = true
			return err
		}
		if reopenErr := a.open(); reopenErr != nil {
			return errors.Join(err, reopenErr)
		}
		return err
	}
	keepTemp = true // renamed into place
	if err := a.open(); err != nil {
		return fmt.Errorf("reopen archive: %w", err)
	}
	if a.eocd.TotalEntries != eocd.TotalEntries || a.eocd.CDOffset != eocd.CDOffset {
		return fmt.Errorf("%w: reopened archive does not match the written central directory", zipfile.ErrMalformedRecord)
	}
	slog.Debug("removed entry",
		"path", a.path, "entry", victim.Path, "freed_bytes", victim.LocalSize+int64(victim.record.Len()),
		"took_ms", time.Since(start).Milliseconds())
	return nil
}

// copyWithout streams every entry except target into dst, then writes the
// compacted central directory and EOCD. Offsets are renumbered to where each
// span lands in dst, which is the original offset minus the sizes of removed
// spans ahead of it.
func (a *Archive) copyWithout(ctx context.Context, dst *Archive, entries []*Entry, target *Entry, chunkSize int) (*zipfile.EndOfCentralDirectory, error) {
	src := chunkio.ReaderAtSource(a.file, 0)
	records := make([]*zipfile.CentralDirectoryStructure, 0, len(entries))
	var pos int64
	for _, e := range entries {
		if e.same(target) {
			continue
		}
		_, err := chunkio.Copy(ctx, dst.writer(), pos, src, e.HeaderOffset, e.LocalSize,
			chunkio.Options{ChunkSize: chunkSize, SkipChecksum: true})
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", e.Path, err)
		}
		r := e.record.Clone()
		r.LocalHeaderOffset = uint32(pos)
		records = append(records, r)
		pos += e.LocalSize
	}

	cd := zipfile.EncodeCentralDirectory(records)
	if err := dst.writeAt(cd, pos); err != nil {
		return nil, fmt.Errorf("write central directory: %w", err)
	}
	eocd := &zipfile.EndOfCentralDirectory{
		DiskEntries:  uint16(len(records)),
		TotalEntries: uint16(len(records)),
		CDSize:       uint32(len(cd)),
		CDOffset:     uint32(pos),
		Comment:      a.eocd.Comment,
	}
	end := pos + int64(len(cd))
	if err := dst.writeAt(eocd.Encode(), end); err != nil {
		return nil, fmt.Errorf("write end of central directory: %w", err)
	}
	if err := dst.file.Truncate(end + int64(eocd.Len())); err != nil {
		return nil, fmt.Errorf("truncate %s: %w", dst.path, err)
	}
	dst.eocd = eocd
	return eocd, nil
}

func (a *Archive) tempPath() string {
	dir, base := filepath.Split(a.path)
	return a.fs.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.Must(uuid.NewV7()).String()))
}

// replaceFile moves from over to. Filesystems that refuse to rename over an
// existing file get a delete-then-move, which is not crash-atomic: between
// the two steps only the temporary file holds the archive.
func replaceFile(fsys billy.Filesystem, from, to string) error {
	err := fsys.Rename(from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}
	slog.Warn("filesystem cannot replace files atomically, deleting before move", "path", to, "temp", from)
	if err := fsys.Remove(to); err != nil {
		return fmt.Errorf("remove %s: %w", to, err)
	}
	if err := fsys.Rename(from, to); err != nil {
		return fmt.Errorf("%w: %s was removed, archive left at %s: %w", ErrReplaceIncomplete, to, from, err)
	}
	return nil
}
