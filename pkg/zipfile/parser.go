package zipfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord = errors.New("malformed zip record")
)

var (
	eocdSignatureBytes = []byte{0x50, 0x4b, 0x05, 0x06}
)

func checkSignature(buf []byte, fixedLen int, sig uint32, kind string) error {
	if len(buf) < fixedLen {
		return fmt.Errorf("%w: %s: need %d bytes, got %d", ErrMalformedRecord, kind, fixedLen, len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != sig {
		return fmt.Errorf("%w: %s: bad signature 0x%08x", ErrMalformedRecord, kind, got)
	}
	return nil
}

// tails splits buf into consecutive slices of the given lengths, copying them out.
func tails(buf []byte, kind string, lengths ...int) ([][]byte, int, error) {
	out := make([][]byte, len(lengths))
	pos := 0
	for i, l := range lengths {
		if pos+l > len(buf) {
			return nil, 0, fmt.Errorf("%w: %s: declared length %d exceeds remaining %d bytes",
				ErrMalformedRecord, kind, l, len(buf)-pos)
		}
		if l > 0 {
			out[i] = append([]byte(nil), buf[pos:pos+l]...)
		}
		pos += l
	}
	return out, pos, nil
}

// DecodeLocalFileHeader decodes a local file header from the start of buf.
func DecodeLocalFileHeader(buf []byte) (*LocalFileHeader, error) {
	const kind = "local file header"
	if err := checkSignature(buf, LocalFileHeaderLen, LocalFileHeaderSignature, kind); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	h := &LocalFileHeader{
		VersionNeeded:    le.Uint16(buf[4:6]),
		Flags:            le.Uint16(buf[6:8]),
		Method:           le.Uint16(buf[8:10]),
		ModTime:          le.Uint16(buf[10:12]),
		ModDate:          le.Uint16(buf[12:14]),
		CRC32:            le.Uint32(buf[14:18]),
		CompressedSize:   le.Uint32(buf[18:22]),
		UncompressedSize: le.Uint32(buf[22:26]),
	}
	t, _, err := tails(buf[LocalFileHeaderLen:], kind,
		int(le.Uint16(buf[26:28])), int(le.Uint16(buf[28:30])))
	if err != nil {
		return nil, err
	}
	h.FileName, h.Extra = t[0], t[1]
	return h, nil
}

// LocalHeaderLen reads only the fixed prefix and returns the full encoded length
// of the local header it starts.
func LocalHeaderLen(prefix []byte) (int, error) {
	if err := checkSignature(prefix, LocalFileHeaderLen, LocalFileHeaderSignature, "local file header"); err != nil {
		return 0, err
	}
	nameLen := int(binary.LittleEndian.Uint16(prefix[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(prefix[28:30]))
	return LocalFileHeaderLen + nameLen + extraLen, nil
}

// DecodeCentralDirectoryStructure decodes one record from the start of buf
// and returns it along with the number of bytes consumed.
func DecodeCentralDirectoryStructure(buf []byte) (*CentralDirectoryStructure, int, error) {
	const kind = "central directory structure"
	if err := checkSignature(buf, CentralDirectoryLen, CentralDirectorySignature, kind); err != nil {
		return nil, 0, err
	}
	le := binary.LittleEndian
	c := &CentralDirectoryStructure{
		CreatorVersion:    le.Uint16(buf[4:6]),
		VersionNeeded:     le.Uint16(buf[6:8]),
		Flags:             le.Uint16(buf[8:10]),
		Method:            le.Uint16(buf[10:12]),
		ModTime:           le.Uint16(buf[12:14]),
		ModDate:           le.Uint16(buf[14:16]),
		CRC32:             le.Uint32(buf[16:20]),
		CompressedSize:    le.Uint32(buf[20:24]),
		UncompressedSize:  le.Uint32(buf[24:28]),
		DiskNumberStart:   le.Uint16(buf[34:36]),
		InternalAttrs:     le.Uint16(buf[36:38]),
		ExternalAttrs:     le.Uint32(buf[38:42]),
		LocalHeaderOffset: le.Uint32(buf[42:46]),
	}
	t, n, err := tails(buf[CentralDirectoryLen:], kind,
		int(le.Uint16(buf[28:30])), int(le.Uint16(buf[30:32])), int(le.Uint16(buf[32:34])))
	if err != nil {
		return nil, 0, err
	}
	c.FileName, c.Extra, c.Comment = t[0], t[1], t[2]
	return c, CentralDirectoryLen + n, nil
}

// DecodeCentralDirectory decodes every record of a central directory region.
func DecodeCentralDirectory(buf []byte) ([]*CentralDirectoryStructure, error) {
	records := make([]*CentralDirectoryStructure, 0)
	for pos := 0; pos < len(buf); {
		cds, n, err := DecodeCentralDirectoryStructure(buf[pos:])
		if err != nil {
			return nil, fmt.Errorf("record %d at +%d: %w", len(records), pos, err)
		}
		records = append(records, cds)
		pos += n
	}
	return records, nil
}

// DecodeEOCD decodes an end of central directory record from the start of buf.
func DecodeEOCD(buf []byte) (*EndOfCentralDirectory, error) {
	const kind = "end of central directory"
	if err := checkSignature(buf, EOCDLen, EOCDSignature, kind); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	e := &EndOfCentralDirectory{
		DiskNumber:   le.Uint16(buf[4:6]),
		CDDiskNumber: le.Uint16(buf[6:8]),
		DiskEntries:  le.Uint16(buf[8:10]),
		TotalEntries: le.Uint16(buf[10:12]),
		CDSize:       le.Uint32(buf[12:16]),
		CDOffset:     le.Uint32(buf[16:20]),
	}
	t, _, err := tails(buf[EOCDLen:], kind, int(le.Uint16(buf[20:22])))
	if err != nil {
		return nil, err
	}
	e.Comment = t[0]
	return e, nil
}

// FindEOCD scans the tail of an archive backwards for the EOCD record.
// base is the offset of tail within the archive. A candidate must end exactly
// at the end of tail; among those, the one whose central directory ends where
// the record starts wins, so an EOCD embedded in the comment is skipped. If no
// candidate lines up, the last one in the file is returned for the caller to
// reject. It returns the decoded record and its offset within tail.
func FindEOCD(tail []byte, base int64) (*EndOfCentralDirectory, int, error) {
	var fallback *EndOfCentralDirectory
	fallbackIdx := 0
	end := len(tail)
	for end > 0 {
		idx := bytes.LastIndex(tail[:end], eocdSignatureBytes)
		if idx == -1 {
			break
		}
		eocd, err := DecodeEOCD(tail[idx:])
		if err == nil && idx+eocd.Len() == len(tail) {
			if eocd.CDEnd() == base+int64(idx) {
				return eocd, idx, nil
			}
			if fallback == nil {
				fallback, fallbackIdx = eocd, idx
			}
		}
		end = idx
	}
	if fallback != nil {
		return fallback, fallbackIdx, nil
	}
	return nil, 0, fmt.Errorf("%w: end of central directory signature not found", ErrMalformedRecord)
}
