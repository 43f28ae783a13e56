package archive

import "errors"

var (
	ErrEntryNotFound      = errors.New("entry not found")
	ErrEntryExists        = errors.New("entry already exists")
	ErrInvalidEntry       = errors.New("invalid entry")
	ErrArchiveNotWritable = errors.New("archive opened read-only")
	ErrOffsetOverflow     = errors.New("offset exceeds 32-bit zip limits")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnsupportedMethod  = errors.New("unsupported compression method")
	ErrReplaceIncomplete  = errors.New("archive replace did not complete")
	ErrArchiveClosed      = errors.New("archive is closed")
)
