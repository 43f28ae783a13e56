package fsmeta

import (
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/ozkatz/zipedit/pkg/chunkio"
)

// File is an open regular file that serves entry payload chunks.
type File struct {
	billy.File
}

func Open(fsys billy.Filesystem, path string) (*File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &File{File: f}, nil
}

func (f *File) Source() chunkio.Source {
	return chunkio.ReaderAtSource(f.File, 0)
}
