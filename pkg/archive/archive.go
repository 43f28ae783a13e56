package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/opencontainers/go-digest"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

// Archive is a ZIP file opened for listing and in-place mutation. It owns its
// file handle exclusively; callers must not share an archive path between
// concurrent writers.
type Archive struct {
	fs        billy.Filesystem
	path      string
	file      billy.File
	readOnly  bool
	codec     codec.Codec
	chunkSize int

	eocd *zipfile.EndOfCentralDirectory
}

type Option func(a *Archive)

// WithReadOnly opens the archive for reading only. Add and Remove fail with ErrArchiveNotWritable.
func WithReadOnly() Option {
	return func(a *Archive) {
		a.readOnly = true
	}
}

// WithCodec overrides the compression codec. By default a flate codec at the
// entry's level is used.
func WithCodec(c codec.Codec) Option {
	return func(a *Archive) {
		a.codec = c
	}
}

// WithChunkSize sets the default I/O chunk size.
func WithChunkSize(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

func newArchive(fsys billy.Filesystem, path string, opts []Option) *Archive {
	a := &Archive{
		fs:        fsys,
		path:      path,
		chunkSize: chunkio.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Create writes a new, empty archive at path. It fails if path already exists.
func Create(fsys billy.Filesystem, path string, opts ...Option) (*Archive, error) {
	a := newArchive(fsys, path, opts)
	if a.readOnly {
		return nil, ErrArchiveNotWritable
	}
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	a.file = f
	a.eocd = &zipfile.EndOfCentralDirectory{}
	if err := a.writeAt(a.eocd.Encode(), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write end of central directory: %w", err)
	}
	return a, nil
}

// Open opens an existing archive and locates its central directory.
func Open(fsys billy.Filesystem, path string, opts ...Option) (*Archive, error) {
	a := newArchive(fsys, path, opts)
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) open() error {
	flag := os.O_RDWR
	if a.readOnly {
		flag = os.O_RDONLY
	}
	f, err := a.fs.OpenFile(a.path, flag, 0)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", a.path, err)
	}
	a.file = f
	if err := a.loadEOCD(); err != nil {
		_ = f.Close()
		a.file = nil
		return err
	}
	return nil
}

func (a *Archive) loadEOCD() error {
	size, err := a.Size()
	if err != nil {
		return err
	}
	tailLen := int64(zipfile.MaxEOCDSearch)
	if size < tailLen {
		tailLen = size
	}
	tail, err := a.readAt(size-tailLen, int(tailLen))
	if err != nil {
		return fmt.Errorf("read archive tail: %w", err)
	}
	eocd, idx, err := zipfile.FindEOCD(tail, size-tailLen)
	if err != nil {
		return err
	}
	eocdOffset := size - tailLen + int64(idx)
	if eocd.DiskNumber != 0 || eocd.CDDiskNumber != 0 || eocd.DiskEntries != eocd.TotalEntries {
		return fmt.Errorf("%w: multi-volume archives are not supported", zipfile.ErrMalformedRecord)
	}
	if eocd.CDEnd() != eocdOffset {
		return fmt.Errorf("%w: central directory ends at %d, end of central directory starts at %d",
			zipfile.ErrMalformedRecord, eocd.CDEnd(), eocdOffset)
	}
	a.eocd = eocd
	slog.Debug("loaded end of central directory",
		"path", a.path, "entries", eocd.TotalEntries, "cd_offset", eocd.CDOffset, "cd_size", eocd.CDSize)
	return nil
}

func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *Archive) Path() string {
	return a.path
}

func (a *Archive) ReadOnly() bool {
	return a.readOnly
}

// EOCD returns a copy of the current end of central directory record.
func (a *Archive) EOCD() zipfile.EndOfCentralDirectory {
	e := *a.eocd
	e.Comment = append([]byte(nil), a.eocd.Comment...)
	return e
}

// Size returns the physical length of the archive file.
func (a *Archive) Size() (int64, error) {
	if a.file == nil {
		return 0, ErrArchiveClosed
	}
	size, err := a.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return size, nil
}

// Digest returns the sha256 digest of the whole archive file.
func (a *Archive) Digest(ctx context.Context) (digest.Digest, error) {
	size, err := a.Size()
	if err != nil {
		return "", err
	}
	digester := digest.Canonical.Digester()
	_, err = chunkio.Copy(ctx, chunkio.SequentialSink(digester.Hash()), 0, chunkio.ReaderAtSource(a.file, 0), 0, size,
		chunkio.Options{ChunkSize: a.chunkSize, SkipChecksum: true})
	if err != nil {
		return "", err
	}
	return digester.Digest(), nil
}

// Entries lists the archive in central directory order.
func (a *Archive) Entries(ctx context.Context) ([]*Entry, error) {
	start := time.Now()
	records, err := a.centralDirectory()
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", chunkio.ErrCancelled, err)
		}
		e, err := a.newEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	slog.Debug("listed entries", "path", a.path, "entries", len(entries), "took_ms", time.Since(start).Milliseconds())
	return entries, nil
}

// Entry returns the entry stored under name.
func (a *Archive) Entry(ctx context.Context, name string) (*Entry, error) {
	entries, err := a.Entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Path == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

func (a *Archive) rawCentralDirectory() ([]byte, error) {
	buf, err := a.readAt(int64(a.eocd.CDOffset), int(a.eocd.CDSize))
	if err != nil {
		return nil, fmt.Errorf("read central directory: %w", err)
	}
	return buf, nil
}

func (a *Archive) centralDirectory() ([]*zipfile.CentralDirectoryStructure, error) {
	buf, err := a.rawCentralDirectory()
	if err != nil {
		return nil, err
	}
	records, err := zipfile.DecodeCentralDirectory(buf)
	if err != nil {
		return nil, err
	}
	if len(records) != int(a.eocd.TotalEntries) {
		return nil, fmt.Errorf("%w: end of central directory lists %d entries, found %d",
			zipfile.ErrMalformedRecord, a.eocd.TotalEntries, len(records))
	}
	return records, nil
}

func (a *Archive) readAt(off int64, n int) ([]byte, error) {
	if a.file == nil {
		return nil, ErrArchiveClosed
	}
	buf := make([]byte, n)
	read, err := a.file.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func (a *Archive) writer() io.WriterAt {
	return &fileWriter{f: a.file}
}

func (a *Archive) writeAt(p []byte, off int64) error {
	n, err := a.writer().WriteAt(p, off)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	return err
}

func (a *Archive) sync() error {
	if a.file == nil {
		return ErrArchiveClosed
	}
	if s, ok := a.file.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// fileWriter gives billy files positional writes. Files that implement
// io.WriterAt natively are used directly; others are positioned with Seek.
type fileWriter struct {
	f billy.File
}

func (w *fileWriter) WriteAt(p []byte, off int64) (int, error) {
	if w.f == nil {
		return 0, ErrArchiveClosed
	}
	if wa, ok := w.f.(io.WriterAt); ok {
		return wa.WriteAt(p, off)
	}
	if _, err := w.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}
