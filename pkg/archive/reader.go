package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

// ReadEntry writes the uncompressed content of e to w and verifies its CRC-32.
// Stored entries are streamed chunk by chunk; deflated entries are inflated as
// one buffer. A checksum mismatch is reported after the content was written.
func (a *Archive) ReadEntry(ctx context.Context, e *Entry, w io.Writer) (int64, error) {
	if a.file == nil {
		return 0, ErrArchiveClosed
	}
	src := chunkio.ReaderAtSource(a.file, e.DataOffset())
	opts := chunkio.Options{ChunkSize: a.chunkSize}

	var crc uint32
	var written int64
	switch e.Method {
	case zipfile.MethodStore:
		var err error
		crc, err = chunkio.Copy(ctx, chunkio.SequentialSink(w), 0, src, 0, e.CompressedSize, opts)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", e.Path, err)
		}
		written = e.CompressedSize
	case zipfile.MethodDeflate:
		buf := chunkio.NewBufferSink(int(e.CompressedSize))
		opts.SkipChecksum = true
		if _, err := chunkio.Copy(ctx, buf, 0, src, 0, e.CompressedSize, opts); err != nil {
			return 0, fmt.Errorf("read %s: %w", e.Path, err)
		}
		data, err := a.codecFor(codec.LevelDefault).Inflate(buf.Bytes())
		if err != nil {
			return 0, fmt.Errorf("inflate %s: %w", e.Path, err)
		}
		if int64(len(data)) != e.UncompressedSize {
			return 0, fmt.Errorf("%w: %s inflated to %d bytes, expected %d",
				zipfile.ErrMalformedRecord, e.Path, len(data), e.UncompressedSize)
		}
		crc = chunkio.Checksum(data)
		n, err := w.Write(data)
		if err != nil {
			return int64(n), err
		}
		written = int64(n)
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedMethod, e.Method)
	}
	if crc != e.CRC32 {
		return written, fmt.Errorf("%w: %s: expected %08x, got %08x", ErrChecksumMismatch, e.Path, e.CRC32, crc)
	}
	return written, nil
}
