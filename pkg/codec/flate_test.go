package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipedit/pkg/codec"
)

func TestFlate_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":     {},
		"repeated":  bytes.Repeat([]byte{'a'}, 1000),
		"text":      []byte("the quick brown fox jumps over the lazy dog"),
		"large mix": bytes.Repeat([]byte("0123456789abcdef\x00\xff"), 10_000),
	}
	for _, level := range []codec.Level{codec.LevelFastest, codec.LevelDefault, codec.LevelBest} {
		c := codec.NewFlate(level)
		for name, in := range inputs {
			t.Run(level.String()+"/"+name, func(t *testing.T) {
				compressed, err := c.Deflate(in)
				require.NoError(t, err)
				out, err := c.Inflate(compressed)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(in, out))
			})
		}
	}
}

func TestFlate_Compresses(t *testing.T) {
	in := bytes.Repeat([]byte{'z'}, 1000)
	compressed, err := codec.NewFlate(codec.LevelDefault).Deflate(in)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(in))
}

func TestFlate_InflateGarbage(t *testing.T) {
	_, err := codec.NewFlate(codec.LevelDefault).Inflate([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, codec.ErrCodec)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]codec.Level{
		"store":   codec.LevelStore,
		"deflate": codec.LevelDefault,
		"best":    codec.LevelBest,
		"3":       codec.Level(3),
	}
	for in, want := range cases {
		got, err := codec.ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"10", "-1", "zstd"} {
		_, err := codec.ParseLevel(bad)
		assert.ErrorIs(t, err, codec.ErrInvalidLevel, bad)
	}
}
