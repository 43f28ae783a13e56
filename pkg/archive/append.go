package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

// snapshot is the pre-append state an interrupted append is rolled back to.
type snapshot struct {
	centralDirectory []byte
	eocd             zipfile.EndOfCentralDirectory
}

// Add appends one entry. The payload is pulled from src (ignored for
// directories and symlinks) in chunks; the local header is written with
// placeholder sizes, rewritten in place once they are known, and only then is
// the central directory moved past the new entry and the EOCD advanced.
//
// If writing the entry fails, including when ctx is cancelled, the archive is
// truncated back to its previous state and the previous central directory and
// EOCD are restored before the error is returned. A failed restore is joined
// to the original error. The provisional local header is written over the old
// central directory, so every failure past validation is rolled back, not only
// cancellation.
func (a *Archive) Add(ctx context.Context, n NewEntry, src chunkio.Source) error {
	if a.readOnly {
		return ErrArchiveNotWritable
	}
	start := time.Now()
	name, err := n.fileName()
	if err != nil {
		return err
	}
	if n.Type == zipfile.TypeFile && n.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidEntry, n.Size)
	}
	if !n.Level.Valid() {
		return fmt.Errorf("%w: %d", codec.ErrInvalidLevel, n.Level)
	}
	if n.payloadSize() > zipfile.MaxOffset {
		return fmt.Errorf("%w: entry %s is %d bytes", ErrOffsetOverflow, name, n.payloadSize())
	}
	if n.payloadSize() > 0 && n.source(src) == nil {
		return fmt.Errorf("%w: no data source for %s", ErrInvalidEntry, name)
	}
	if int(a.eocd.TotalEntries)+1 > zipfile.MaxEntries {
		return fmt.Errorf("%w: archive already holds %d entries", ErrOffsetOverflow, a.eocd.TotalEntries)
	}

	// step 1: remember the central directory and EOCD being replaced
	records, err := a.centralDirectory()
	if err != nil {
		return err
	}
	for _, r := range records {
		if bytes.Equal(r.FileName, name) {
			return fmt.Errorf("%w: %s", ErrEntryExists, name)
		}
	}
	prev := snapshot{eocd: a.EOCD()}
	prev.centralDirectory, err = a.rawCentralDirectory()
	if err != nil {
		return err
	}

	headerOffset := int64(prev.eocd.CDOffset)
	modDate, modTime := zipfile.TimeToMSDOS(n.Modified)
	cds := &zipfile.CentralDirectoryStructure{
		CreatorVersion:    zipfile.VersionMadeBy,
		VersionNeeded:     zipfile.VersionNeeded,
		Flags:             utf8Flag(name),
		Method:            n.method(),
		ModTime:           modTime,
		ModDate:           modDate,
		ExternalAttrs:     zipfile.ExternalAttrs(n.Type, n.Perm),
		LocalHeaderOffset: uint32(headerOffset),
		FileName:          name,
	}

	eocd, err := a.appendEntry(ctx, &n, cds, src, prev)
	if err != nil {
		// the provisional header has already overwritten the old central directory
		if rbErr := a.rollback(headerOffset, prev); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		if errors.Is(err, chunkio.ErrCancelled) {
			slog.Debug("append cancelled, archive rolled back", "path", a.path, "entry", string(name))
		} else {
			slog.Warn("append failed, archive rolled back", "path", a.path, "entry", string(name), "error", err)
		}
		return err
	}
	a.eocd = eocd
	slog.Debug("appended entry",
		"path", a.path, "entry", string(name), "method", cds.Method,
		"uncompressed", cds.UncompressedSize, "compressed", cds.CompressedSize,
		"took_ms", time.Since(start).Milliseconds())
	return nil
}

// appendEntry performs steps 2 to 5 and returns the EOCD now on disk.
func (a *Archive) appendEntry(ctx context.Context, n *NewEntry, cds *zipfile.CentralDirectoryStructure, src chunkio.Source, prev snapshot) (*zipfile.EndOfCentralDirectory, error) {
	chunkSize := n.ChunkSize
	if chunkSize <= 0 {
		chunkSize = a.chunkSize
	}
	headerOffset := int64(cds.LocalHeaderOffset)

	// step 2: provisional header, sizes and checksum zeroed
	lfh := cds.LocalHeader()
	if err := a.writeAt(lfh.Encode(), headerOffset); err != nil {
		return nil, fmt.Errorf("write local header: %w", err)
	}

	// step 3: payload
	payloadOffset := headerOffset + int64(lfh.Len())
	crc, compressedSize, err := a.writePayload(ctx, n, src, payloadOffset, chunkSize)
	if err != nil {
		return nil, err
	}
	cdOffset := payloadOffset + compressedSize
	cdSize := int64(len(prev.centralDirectory)) + int64(cds.Len())
	if cdOffset > zipfile.MaxOffset || cdOffset+cdSize > zipfile.MaxOffset {
		return nil, fmt.Errorf("%w: central directory would start at %d", ErrOffsetOverflow, cdOffset)
	}

	// step 4: final header at the same offset and of the same length
	cds.CRC32 = crc
	cds.CompressedSize = uint32(compressedSize)
	cds.UncompressedSize = uint32(n.payloadSize())
	final := cds.LocalHeader()
	if final.Len() != lfh.Len() {
		return nil, fmt.Errorf("local header length changed from %d to %d", lfh.Len(), final.Len())
	}
	if err := a.writeAt(final.Encode(), headerOffset); err != nil {
		return nil, fmt.Errorf("rewrite local header: %w", err)
	}

	// step 5: relocated central directory, new record, new EOCD
	_, err = chunkio.Copy(ctx, a.writer(), cdOffset, chunkio.BytesSource(prev.centralDirectory), 0, int64(len(prev.centralDirectory)),
		chunkio.Options{ChunkSize: chunkSize, SkipChecksum: true})
	if err != nil {
		return nil, fmt.Errorf("relocate central directory: %w", err)
	}
	if err := a.writeAt(cds.Encode(), cdOffset+int64(len(prev.centralDirectory))); err != nil {
		return nil, fmt.Errorf("write central directory structure: %w", err)
	}
	eocd := &zipfile.EndOfCentralDirectory{
		DiskEntries:  prev.eocd.TotalEntries + 1,
		TotalEntries: prev.eocd.TotalEntries + 1,
		CDSize:       uint32(cdSize),
		CDOffset:     uint32(cdOffset),
		Comment:      prev.eocd.Comment,
	}
	if err := a.writeAt(eocd.Encode(), cdOffset+cdSize); err != nil {
		return nil, fmt.Errorf("write end of central directory: %w", err)
	}
	if err := a.file.Truncate(cdOffset + cdSize + int64(eocd.Len())); err != nil {
		return nil, fmt.Errorf("truncate archive: %w", err)
	}
	return eocd, nil
}

// writePayload streams the entry content and returns its CRC-32 and stored size.
func (a *Archive) writePayload(ctx context.Context, n *NewEntry, src chunkio.Source, off int64, chunkSize int) (uint32, int64, error) {
	size := n.payloadSize()
	if size == 0 {
		return 0, 0, nil
	}
	src = n.source(src)
	opts := chunkio.Options{ChunkSize: chunkSize}

	if n.method() == zipfile.MethodStore {
		crc, err := chunkio.Copy(ctx, a.writer(), off, src, 0, size, opts)
		if err != nil {
			return 0, 0, fmt.Errorf("write payload: %w", err)
		}
		return crc, size, nil
	}

	// deflate compresses the whole payload as one unit
	buf := chunkio.NewBufferSink(int(size))
	crc, err := chunkio.Copy(ctx, buf, 0, src, 0, size, opts)
	if err != nil {
		return 0, 0, fmt.Errorf("read payload: %w", err)
	}
	compressed, err := a.codecFor(n.Level).Deflate(buf.Bytes())
	if err != nil {
		return 0, 0, err
	}
	if off+int64(len(compressed)) > zipfile.MaxOffset {
		return 0, 0, fmt.Errorf("%w: compressed payload ends past %d", ErrOffsetOverflow, int64(zipfile.MaxOffset))
	}
	opts.SkipChecksum = true
	if _, err := chunkio.Copy(ctx, a.writer(), off, chunkio.BytesSource(compressed), 0, int64(len(compressed)), opts); err != nil {
		return 0, 0, fmt.Errorf("write compressed payload: %w", err)
	}
	return crc, int64(len(compressed)), nil
}

func (a *Archive) codecFor(level codec.Level) codec.Codec {
	if a.codec != nil {
		return a.codec
	}
	return codec.NewFlate(level)
}

// rollback restores the archive to the state captured in prev, whose central
// directory started at headerOffset.
func (a *Archive) rollback(headerOffset int64, prev snapshot) error {
	if err := a.file.Truncate(headerOffset); err != nil {
		return fmt.Errorf("truncate to %d: %w", headerOffset, err)
	}
	if err := a.writeAt(prev.centralDirectory, headerOffset); err != nil {
		return fmt.Errorf("restore central directory: %w", err)
	}
	eocdOffset := headerOffset + int64(len(prev.centralDirectory))
	if err := a.writeAt(prev.eocd.Encode(), eocdOffset); err != nil {
		return fmt.Errorf("restore end of central directory: %w", err)
	}
	eocd := prev.eocd
	a.eocd = &eocd
	return nil
}

// utf8Flag marks names that carry non-ASCII UTF-8.
func utf8Flag(name []byte) uint16 {
	if !utf8.Valid(name) {
		return 0
	}
	for _, b := range name {
		if b >= utf8.RuneSelf {
			return zipfile.FlagUTF8
		}
	}
	return 0
}
