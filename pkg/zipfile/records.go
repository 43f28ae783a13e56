package zipfile

import (
	"encoding/binary"
	"math"
)

const (
	LocalFileHeaderSignature  uint32 = 0x04034b50
	CentralDirectorySignature uint32 = 0x02014b50
	EOCDSignature             uint32 = 0x06054b50
	DataDescriptorSignature   uint32 = 0x08074b50

	LocalFileHeaderLen  = 30
	CentralDirectoryLen = 46
	EOCDLen             = 22

	// MaxEOCDSearch covers the fixed EOCD record plus the largest possible trailing comment.
	MaxEOCDSearch = EOCDLen + math.MaxUint16

	MaxOffset  = math.MaxUint32
	MaxEntries = math.MaxUint16
)

const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

const (
	// VersionNeeded is 2.0: deflate and directories.
	VersionNeeded uint16 = 20
	// VersionMadeBy marks records as created on Unix so readers honor the mode bits.
	VersionMadeBy = creatorUnix<<8 | VersionNeeded
)

const (
	// FlagDataDescriptor is bit 3: sizes and CRC follow the payload.
	// Records written here never set it; the local header is rewritten in place instead.
	FlagDataDescriptor uint16 = 0x0008
	// FlagUTF8 is bit 11: name and comment are UTF-8.
	FlagUTF8 uint16 = 0x0800
)

// LocalFileHeader is the record written immediately before an entry's payload.
type LocalFileHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	FileName         []byte
	Extra            []byte
}

// Len returns the encoded length. It does not depend on the numeric fields.
func (h *LocalFileHeader) Len() int {
	return LocalFileHeaderLen + len(h.FileName) + len(h.Extra)
}

func (h *LocalFileHeader) Encode() []byte {
	buf := make([]byte, h.Len())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], LocalFileHeaderSignature)
	le.PutUint16(buf[4:6], h.VersionNeeded)
	le.PutUint16(buf[6:8], h.Flags)
	le.PutUint16(buf[8:10], h.Method)
	le.PutUint16(buf[10:12], h.ModTime)
	le.PutUint16(buf[12:14], h.ModDate)
	le.PutUint32(buf[14:18], h.CRC32)
	le.PutUint32(buf[18:22], h.CompressedSize)
	le.PutUint32(buf[22:26], h.UncompressedSize)
	le.PutUint16(buf[26:28], uint16(len(h.FileName)))
	le.PutUint16(buf[28:30], uint16(len(h.Extra)))
	n := LocalFileHeaderLen
	n += copy(buf[n:], h.FileName)
	copy(buf[n:], h.Extra)
	return buf
}

// CentralDirectoryStructure is one central directory record.
type CentralDirectoryStructure struct {
	CreatorVersion    uint16
	VersionNeeded     uint16
	Flags             uint16
	Method            uint16
	ModTime           uint16
	ModDate           uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	DiskNumberStart   uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint32
	FileName          []byte
	Extra             []byte
	Comment           []byte
}

func (c *CentralDirectoryStructure) Len() int {
	return CentralDirectoryLen + len(c.FileName) + len(c.Extra) + len(c.Comment)
}

func (c *CentralDirectoryStructure) Encode() []byte {
	buf := make([]byte, c.Len())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], CentralDirectorySignature)
	le.PutUint16(buf[4:6], c.CreatorVersion)
	le.PutUint16(buf[6:8], c.VersionNeeded)
	le.PutUint16(buf[8:10], c.Flags)
	le.PutUint16(buf[10:12], c.Method)
	le.PutUint16(buf[12:14], c.ModTime)
	le.PutUint16(buf[14:16], c.ModDate)
	le.PutUint32(buf[16:20], c.CRC32)
	le.PutUint32(buf[20:24], c.CompressedSize)
	le.PutUint32(buf[24:28], c.UncompressedSize)
	le.PutUint16(buf[28:30], uint16(len(c.FileName)))
	le.PutUint16(buf[30:32], uint16(len(c.Extra)))
	le.PutUint16(buf[32:34], uint16(len(c.Comment)))
	le.PutUint16(buf[34:36], c.DiskNumberStart)
	le.PutUint16(buf[36:38], c.InternalAttrs)
	le.PutUint32(buf[38:42], c.ExternalAttrs)
	le.PutUint32(buf[42:46], c.LocalHeaderOffset)
	n := CentralDirectoryLen
	n += copy(buf[n:], c.FileName)
	n += copy(buf[n:], c.Extra)
	copy(buf[n:], c.Comment)
	return buf
}

// LocalHeader returns the local file header matching this record.
// The extra field is not carried over: central and local extras may differ.
func (c *CentralDirectoryStructure) LocalHeader() *LocalFileHeader {
	return &LocalFileHeader{
		VersionNeeded:    c.VersionNeeded,
		Flags:            c.Flags,
		Method:           c.Method,
		ModTime:          c.ModTime,
		ModDate:          c.ModDate,
		CRC32:            c.CRC32,
		CompressedSize:   c.CompressedSize,
		UncompressedSize: c.UncompressedSize,
		FileName:         c.FileName,
	}
}

// Clone returns a deep copy, so callers can renumber offsets without
// touching records shared with listed entries.
func (c *CentralDirectoryStructure) Clone() *CentralDirectoryStructure {
	out := *c
	out.FileName = append([]byte(nil), c.FileName...)
	out.Extra = append([]byte(nil), c.Extra...)
	out.Comment = append([]byte(nil), c.Comment...)
	return &out
}

// EndOfCentralDirectory is the trailer record locating the central directory.
type EndOfCentralDirectory struct {
	DiskNumber   uint16
	CDDiskNumber uint16
	DiskEntries  uint16
	TotalEntries uint16
	CDSize       uint32
	CDOffset     uint32
	Comment      []byte
}

func (e *EndOfCentralDirectory) Len() int {
	return EOCDLen + len(e.Comment)
}

func (e *EndOfCentralDirectory) Encode() []byte {
	buf := make([]byte, e.Len())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], EOCDSignature)
	le.PutUint16(buf[4:6], e.DiskNumber)
	le.PutUint16(buf[6:8], e.CDDiskNumber)
	le.PutUint16(buf[8:10], e.DiskEntries)
	le.PutUint16(buf[10:12], e.TotalEntries)
	le.PutUint32(buf[12:16], e.CDSize)
	le.PutUint32(buf[16:20], e.CDOffset)
	le.PutUint16(buf[20:22], uint16(len(e.Comment)))
	copy(buf[EOCDLen:], e.Comment)
	return buf
}

// CDEnd is the offset one past the last central directory byte.
func (e *EndOfCentralDirectory) CDEnd() int64 {
	return int64(e.CDOffset) + int64(e.CDSize)
}

// EncodeCentralDirectory concatenates the encoded records.
func EncodeCentralDirectory(records []*CentralDirectoryStructure) []byte {
	size := 0
	for _, r := range records {
		size += r.Len()
	}
	buf := make([]byte, 0, size)
	for _, r := range records {
		buf = append(buf, r.Encode()...)
	}
	return buf
}
