package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/flate"
)

var (
	ErrCodec        = errors.New("codec failure")
	ErrInvalidLevel = errors.New("invalid compression level")
)

// Codec transforms whole buffers. Deflate output is a raw deflate stream,
// which is what ZIP method 8 stores.
type Codec interface {
	Deflate(data []byte) ([]byte, error)
	Inflate(data []byte) ([]byte, error)
}

// Level selects how an entry's payload is stored.
type Level int

const (
	LevelStore   Level = 0
	LevelFastest Level = 1
	LevelDefault Level = 6
	LevelBest    Level = 9
)

func (l Level) Valid() bool {
	return l >= LevelStore && l <= LevelBest
}

func (l Level) String() string {
	switch l {
	case LevelStore:
		return "store"
	case LevelDefault:
		return "deflate"
	}
	return fmt.Sprintf("deflate-%d", int(l))
}

// ParseLevel accepts "store", "deflate" or a number from 0 to 9.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "store", "none":
		return LevelStore, nil
	case "deflate", "default", "":
		return LevelDefault, nil
	case "fastest":
		return LevelFastest, nil
	case "best":
		return LevelBest, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Level(n).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return Level(n), nil
}

// Flate is a Codec backed by klauspost/compress/flate.
type Flate struct {
	Level Level
}

func NewFlate(level Level) *Flate {
	return &Flate{Level: level}
}

func (f *Flate) Deflate(data []byte) ([]byte, error) {
	level := int(f.Level)
	if f.Level == LevelStore {
		level = flate.NoCompression
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: deflate: %w", ErrCodec, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: deflate: %w", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func (f *Flate) Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() {
		_ = r.Close()
	}()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %w", ErrCodec, err)
	}
	return out, nil
}
