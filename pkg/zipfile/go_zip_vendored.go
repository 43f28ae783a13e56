package zipfile

import (
	"io/fs"
	"time"
)

const (
	// Constants for the first byte in CreatorVersion.
	creatorFAT    uint16 = 0
	creatorUnix   uint16 = 3
	creatorNTFS   uint16 = 11
	creatorVFAT   uint16 = 14
	creatorMacOSX uint16 = 19
)

const (
	// Unix constants. The ZIP format doesn't define them,
	// but these seem to be the values agreed on by tools.
	s_IFMT   = 0xf000
	s_IFSOCK = 0xc000
	s_IFLNK  = 0xa000
	s_IFREG  = 0x8000
	s_IFBLK  = 0x6000
	s_IFDIR  = 0x4000
	s_IFCHR  = 0x2000
	s_IFIFO  = 0x1000
	s_ISUID  = 0x800
	s_ISGID  = 0x400
	s_ISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// EntryType is the kind of filesystem object an entry stands for.
type EntryType uint8

const (
	TypeFile EntryType = iota
	TypeDirectory
	TypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/archive/zip/struct.go
// MSDOSToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func MSDOSToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}

// TimeToMSDOS converts a time.Time to an MS-DOS date and time, in t's own location.
// Times outside 1980-01-01..2107-12-31 are clamped to the nearest representable value.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-filetimetodosdatetime
func TimeToMSDOS(t time.Time) (dosDate, dosTime uint16) {
	switch {
	case t.Year() < 1980:
		return 1<<5 | 1, 0
	case t.Year() > 2107:
		return 127<<9 | 12<<5 | 31, 23<<11 | 59<<5 | 29
	}
	dosDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	dosTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// ExternalAttrs packs an entry type and permission bits into the central
// directory's external attributes: Unix mode in the high 16 bits, MS-DOS
// attributes in the low byte.
func ExternalAttrs(typ EntryType, perm fs.FileMode) uint32 {
	m := uint32(perm.Perm())
	switch typ {
	case TypeDirectory:
		m |= s_IFDIR
	case TypeSymlink:
		m |= s_IFLNK
	default:
		m |= s_IFREG
	}
	if perm&fs.ModeSetuid != 0 {
		m |= s_ISUID
	}
	if perm&fs.ModeSetgid != 0 {
		m |= s_ISGID
	}
	if perm&fs.ModeSticky != 0 {
		m |= s_ISVTX
	}
	attrs := m << 16
	if typ == TypeDirectory {
		attrs |= msdosDir
	}
	if perm&0200 == 0 {
		attrs |= msdosReadOnly
	}
	return attrs
}

// FileMode recovers a file mode from the creator version and external attributes.
// Names ending in a slash are directories regardless of attributes.
func FileMode(creatorVersion uint16, externalAttrs uint32, name []byte) fs.FileMode {
	var mode fs.FileMode
	switch creatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		mode = unixModeToFileMode(externalAttrs >> 16)
	case creatorNTFS, creatorVFAT, creatorFAT:
		mode = msdosModeToFileMode(externalAttrs)
	}
	if len(name) > 0 && name[len(name)-1] == '/' {
		mode |= fs.ModeDir
	}
	return mode
}

// TypeOf classifies a file mode as one of the entry types an archive stores.
func TypeOf(mode fs.FileMode) EntryType {
	switch {
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	default:
		return TypeFile
	}
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0777)
	switch m & s_IFMT {
	case s_IFBLK:
		mode |= fs.ModeDevice
	case s_IFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case s_IFDIR:
		mode |= fs.ModeDir
	case s_IFIFO:
		mode |= fs.ModeNamedPipe
	case s_IFLNK:
		mode |= fs.ModeSymlink
	case s_IFREG:
		// nothing to do
	case s_IFSOCK:
		mode |= fs.ModeSocket
	}
	if m&s_ISGID != 0 {
		mode |= fs.ModeSetgid
	}
	if m&s_ISUID != 0 {
		mode |= fs.ModeSetuid
	}
	if m&s_ISVTX != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

func msdosModeToFileMode(m uint32) (mode fs.FileMode) {
	if m&msdosDir != 0 {
		mode = fs.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}
