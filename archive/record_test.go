package archive

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "a/b.txt", want: "a/b.txt"},
		{name: "dot slash prefix", in: "./a/b.txt", want: "a/b.txt"},
		{name: "absolute", in: "/a/b", want: "a/b"},
		{name: "trailing slash", in: "dir/", want: "dir"},
		{name: "root dot", in: "./", want: ""},
		{name: "bare dot", in: ".", want: ""},
		{name: "doubled separators", in: "a//b/./c", want: "a/b/c"},
		{name: "dotdot inside", in: "a/../b", want: "b"},
		{name: "dotdot escape", in: "../etc/passwd", wantErr: true},
		{name: "dotdot escape after descent", in: "a/../../b", wantErr: true},
		{name: "case preserved", in: "Dir/File", want: "Dir/File"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrCorruptArchive))
				assert.True(t, errors.Is(err, ErrPathEscapes))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderRecord(t *testing.T) {
	mt := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("regular keeps size and mode", func(t *testing.T) {
		h := &Header{Name: "./x/y", Kind: KindRegular, Size: 12, Mode: 0o100600, ModTime: mt, Seq: 4}
		r, err := h.Record()
		require.NoError(t, err)
		assert.Equal(t, "x/y", r.Path)
		assert.Equal(t, int64(12), r.Size)
		assert.Equal(t, 0o600, int(r.Mode))
		assert.Equal(t, mt, r.ModTime)
		assert.Equal(t, Token(4), r.Token)
		assert.True(t, r.HasToken())
	})

	t.Run("directory drops size and gets default mode", func(t *testing.T) {
		h := &Header{Name: "d/", Kind: KindDirectory, Size: 99, Seq: 1}
		r, err := h.Record()
		require.NoError(t, err)
		assert.Zero(t, r.Size)
		assert.Equal(t, DefaultDirMode, r.Mode)
	})

	t.Run("missing mode on file gets default", func(t *testing.T) {
		h := &Header{Name: "f", Kind: KindRegular}
		r, err := h.Record()
		require.NoError(t, err)
		assert.Equal(t, DefaultFileMode, r.Mode)
	})

	t.Run("epoch mtime is treated as absent", func(t *testing.T) {
		h := &Header{Name: "f", Kind: KindRegular, ModTime: time.Unix(0, 0)}
		r, err := h.Record()
		require.NoError(t, err)
		assert.True(t, r.ModTime.IsZero())
	})

	t.Run("symlink target recorded", func(t *testing.T) {
		h := &Header{Name: "l", Kind: KindSymlink, LinkTarget: "../t"}
		r, err := h.Record()
		require.NoError(t, err)
		assert.Equal(t, "../t", r.LinkTarget)
	})

	t.Run("special type kept only for other kind", func(t *testing.T) {
		r, err := (&Header{Name: "p", Kind: KindOther, SpecialType: fs.ModeNamedPipe}).Record()
		require.NoError(t, err)
		assert.Equal(t, fs.ModeNamedPipe, r.SpecialType)

		r, err = (&Header{Name: "f", Kind: KindRegular, SpecialType: fs.ModeNamedPipe}).Record()
		require.NoError(t, err)
		assert.Zero(t, r.SpecialType)
	})

	t.Run("escape rejected", func(t *testing.T) {
		_, err := (&Header{Name: "../x", Kind: KindRegular}).Record()
		assert.ErrorIs(t, err, ErrPathEscapes)
	})
}

func TestSynthesized(t *testing.T) {
	r := Synthesized("a/b")
	assert.Equal(t, KindDirectory, r.Kind)
	assert.Equal(t, DefaultDirMode, r.Mode)
	assert.False(t, r.HasToken())
	assert.True(t, r.ModTime.IsZero())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "regular", KindRegular.String())
	assert.Equal(t, "directory", KindDirectory.String())
	assert.Equal(t, "symlink", KindSymlink.String())
	assert.Equal(t, "other", KindOther.String())
	assert.Equal(t, "unknown(9)", Kind(9).String())
}
