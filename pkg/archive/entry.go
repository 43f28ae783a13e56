package archive

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ozkatz/zipedit/pkg/chunkio"
	"github.com/ozkatz/zipedit/pkg/codec"
	"github.com/ozkatz/zipedit/pkg/zipfile"
)

const (
	TypeFile      = zipfile.TypeFile
	TypeDirectory = zipfile.TypeDirectory
	TypeSymlink   = zipfile.TypeSymlink
)

// Entry is an immutable snapshot of one listed archive member.
type Entry struct {
	Path             string
	Type             zipfile.EntryType
	Mode             fs.FileMode
	Modified         time.Time
	Method           uint16
	CRC32            uint32
	CompressedSize   int64
	UncompressedSize int64

	// HeaderOffset is the absolute offset of the local file header.
	HeaderOffset int64
	// HeaderSize is the encoded length of the local file header.
	HeaderSize int64
	// LocalSize spans the local header, the payload and any data descriptor.
	LocalSize int64

	record *zipfile.CentralDirectoryStructure
}

// DataOffset is the absolute offset of the entry's payload.
func (e *Entry) DataOffset() int64 {
	return e.HeaderOffset + e.HeaderSize
}

// Record returns a copy of the entry's central directory structure.
func (e *Entry) Record() *zipfile.CentralDirectoryStructure {
	return e.record.Clone()
}

func (e *Entry) same(other *Entry) bool {
	return other != nil && e.Path == other.Path && e.HeaderOffset == other.HeaderOffset
}

func (a *Archive) newEntry(r *zipfile.CentralDirectoryStructure) (*Entry, error) {
	mode := zipfile.FileMode(r.CreatorVersion, r.ExternalAttrs, r.FileName)
	e := &Entry{
		Path:             string(r.FileName),
		Type:             zipfile.TypeOf(mode),
		Mode:             mode,
		Modified:         zipfile.MSDOSToTime(r.ModDate, r.ModTime),
		Method:           r.Method,
		CRC32:            r.CRC32,
		CompressedSize:   int64(r.CompressedSize),
		UncompressedSize: int64(r.UncompressedSize),
		HeaderOffset:     int64(r.LocalHeaderOffset),
		record:           r,
	}
	prefix, err := a.readAt(e.HeaderOffset, zipfile.LocalFileHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("read local header of %s at %d: %w", e.Path, e.HeaderOffset, err)
	}
	headerLen, err := zipfile.LocalHeaderLen(prefix)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.Path, err)
	}
	e.HeaderSize = int64(headerLen)
	e.LocalSize = e.HeaderSize + e.CompressedSize
	if r.Flags&zipfile.FlagDataDescriptor != 0 {
		n, err := a.dataDescriptorLen(e.HeaderOffset + e.LocalSize)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		e.LocalSize += n
	}
	if e.HeaderOffset+e.LocalSize > int64(a.eocd.CDOffset) {
		return nil, fmt.Errorf("%w: entry %s overlaps the central directory", zipfile.ErrMalformedRecord, e.Path)
	}
	return e, nil
}

// dataDescriptorLen measures a trailing data descriptor; its signature is optional.
func (a *Archive) dataDescriptorLen(off int64) (int64, error) {
	sig, err := a.readAt(off, 4)
	if err != nil {
		return 0, fmt.Errorf("read data descriptor: %w", err)
	}
	if binary.LittleEndian.Uint32(sig) == zipfile.DataDescriptorSignature {
		return 16, nil
	}
	return 12, nil
}

// NewEntry describes an entry to append. Metadata is already resolved by the
// caller; the archive never inspects the filesystem for it.
type NewEntry struct {
	Path     string
	Type     zipfile.EntryType
	Size     int64
	Modified time.Time
	Perm     fs.FileMode
	Level    codec.Level
	// LinkTarget is the content of a symlink entry.
	LinkTarget string
	// ChunkSize overrides the archive's chunk size for this entry.
	ChunkSize int
}

func (n *NewEntry) fileName() ([]byte, error) {
	name := n.Path
	if name == "" || strings.HasPrefix(name, "/") {
		return nil, fmt.Errorf("%w: path %q must be relative and non-empty", ErrInvalidEntry, name)
	}
	switch n.Type {
	case zipfile.TypeDirectory:
		if !strings.HasSuffix(name, "/") {
			name += "/"
		}
	case zipfile.TypeFile, zipfile.TypeSymlink:
		if strings.HasSuffix(name, "/") {
			return nil, fmt.Errorf("%w: %s %q ends with a slash", ErrInvalidEntry, n.Type, name)
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidEntry, n.Type)
	}
	if len(name) > zipfile.MaxEntries {
		return nil, fmt.Errorf("%w: path is %d bytes long", ErrInvalidEntry, len(name))
	}
	return []byte(name), nil
}

func (n *NewEntry) payloadSize() int64 {
	switch n.Type {
	case zipfile.TypeDirectory:
		return 0
	case zipfile.TypeSymlink:
		return int64(len(n.LinkTarget))
	}
	return n.Size
}

// method picks deflate only for non-empty files. An empty payload is stored,
// since a zero-length deflate body is not a valid stream.
func (n *NewEntry) method() uint16 {
	if n.Type == zipfile.TypeFile && n.Level != codec.LevelStore && n.payloadSize() > 0 {
		return zipfile.MethodDeflate
	}
	return zipfile.MethodStore
}

func (n *NewEntry) source(src chunkio.Source) chunkio.Source {
	if n.Type == zipfile.TypeSymlink {
		return chunkio.BytesSource(n.LinkTarget)
	}
	return src
}
