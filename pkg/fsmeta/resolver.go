// Package fsmeta resolves the metadata an archive entry is built from.
package fsmeta

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/ozkatz/zipedit/pkg/zipfile"
)

var ErrUnsupportedType = errors.New("unsupported file type")

type Metadata struct {
	Path       string
	Type       zipfile.EntryType
	Size       int64
	ModTime    time.Time
	Perm       fs.FileMode
	LinkTarget string
}

// Resolve describes path without following a final symlink. Devices, sockets
// and named pipes are rejected with ErrUnsupportedType.
func Resolve(fsys billy.Filesystem, path string) (*Metadata, error) {
	info, err := fsys.Lstat(path)
	if err != nil {
		return nil, err
	}
	m := &Metadata{
		Path:    path,
		ModTime: info.ModTime(),
		Perm:    info.Mode().Perm(),
	}
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		m.Type = zipfile.TypeFile
		m.Size = info.Size()
	case mode.IsDir():
		m.Type = zipfile.TypeDirectory
	case mode&fs.ModeSymlink != 0:
		m.Type = zipfile.TypeSymlink
		m.LinkTarget, err = fsys.Readlink(path)
		if err != nil {
			return nil, err
		}
		m.Size = int64(len(m.LinkTarget))
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedType, path, mode.Type())
	}
	return m, nil
}
