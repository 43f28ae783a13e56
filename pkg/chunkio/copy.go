package chunkio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	DefaultChunkSize = 64 * 1024
)

var (
	ErrCancelled   = errors.New("operation cancelled")
	ErrShortSource = errors.New("source returned no data before the expected size")
	ErrInvalidSize = errors.New("invalid chunk size")
)

// Source produces the bytes of a stream on demand. Offsets passed to ReadChunk
// increase monotonically for a single copy. Implementations return at most size bytes.
type Source interface {
	ReadChunk(offset int64, size int) ([]byte, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(offset int64, size int) ([]byte, error)

func (f SourceFunc) ReadChunk(offset int64, size int) ([]byte, error) {
	return f(offset, size)
}

// BytesSource serves a byte slice held in memory.
type BytesSource []byte

func (b BytesSource) ReadChunk(offset int64, size int) ([]byte, error) {
	if offset >= int64(len(b)) {
		return nil, io.EOF
	}
	end := offset + int64(size)
	if end > int64(len(b)) {
		end = int64(len(b))
	}
	return b[offset:end], nil
}

type readerAtSource struct {
	r    io.ReaderAt
	base int64
}

// ReaderAtSource serves bytes of r starting at base. Offsets passed to
// ReadChunk are relative to base.
func ReaderAtSource(r io.ReaderAt, base int64) Source {
	return &readerAtSource{r: r, base: base}
}

func (s *readerAtSource) ReadChunk(offset int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := s.r.ReadAt(buf, s.base+offset)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return buf[:n], err
}

type sequentialSink struct {
	w    io.Writer
	next int64
	set  bool
}

// SequentialSink adapts a forward-only writer to io.WriterAt. Writes must be
// contiguous: each offset must equal the end of the previous write.
func SequentialSink(w io.Writer) io.WriterAt {
	return &sequentialSink{w: w}
}

func (s *sequentialSink) WriteAt(p []byte, off int64) (int, error) {
	if s.set && off != s.next {
		return 0, fmt.Errorf("non-sequential write at %d, expected %d", off, s.next)
	}
	n, err := s.w.Write(p)
	s.next = off + int64(n)
	s.set = true
	return n, err
}

// BufferSink is an in-memory io.WriterAt that grows as needed.
type BufferSink struct {
	buf []byte
}

func NewBufferSink(capacity int) *BufferSink {
	return &BufferSink{buf: make([]byte, 0, capacity)}
}

func (b *BufferSink) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	end := int(off) + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, len(b.buf), end*2)
			copy(grown, b.buf)
			b.buf = grown
		}
		b.buf = b.buf[:end]
	}
	return copy(b.buf[off:], p), nil
}

func (b *BufferSink) Bytes() []byte {
	return b.buf
}

type Options struct {
	// ChunkSize bounds every read and write. Zero means DefaultChunkSize.
	ChunkSize int
	// Seed is the running checksum to continue from.
	Seed uint32
	// SkipChecksum disables checksum accumulation, for bytes whose checksum is already known.
	SkipChecksum bool
}

// Copy moves size bytes from src (starting at srcOffset) to dst (starting at
// dstOffset) in chunks of at most opts.ChunkSize bytes, returning the CRC-32 of
// the moved bytes seeded with opts.Seed (or opts.Seed unchanged when
// SkipChecksum is set). ctx is checked before each chunk; once it is done Copy
// returns an error matching ErrCancelled, leaving whatever was already written
// in dst.
func Copy(ctx context.Context, dst io.WriterAt, dstOffset int64, src Source, srcOffset int64, size int64, opts Options) (uint32, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}
	crc := opts.Seed
	var moved int64
	for moved < size {
		if err := ctx.Err(); err != nil {
			return crc, fmt.Errorf("%w after %d of %d bytes: %w", ErrCancelled, moved, size, err)
		}
		want := size - moved
		if want > int64(chunkSize) {
			want = int64(chunkSize)
		}
		chunk, err := src.ReadChunk(srcOffset+moved, int(want))
		if len(chunk) > int(want) {
			chunk = chunk[:want]
		}
		if len(chunk) == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				err = ErrShortSource
			}
			return crc, fmt.Errorf("read at %d: %w", srcOffset+moved, err)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return crc, fmt.Errorf("read at %d: %w", srcOffset+moved, err)
		}
		nw, err := dst.WriteAt(chunk, dstOffset+moved)
		if err != nil {
			return crc, fmt.Errorf("write at %d: %w", dstOffset+moved, err)
		}
		if nw != len(chunk) {
			return crc, fmt.Errorf("write at %d: %w", dstOffset+moved, io.ErrShortWrite)
		}
		if !opts.SkipChecksum {
			crc = Update(crc, chunk)
		}
		moved += int64(len(chunk))
	}
	return crc, nil
}
