package logsource

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "12:00:00.000|USER_DEBUG|[1]|DEBUG|hi\n"

func gzipped(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.log")
	packed := filepath.Join(dir, "b.log.gz")
	require.NoError(t, os.WriteFile(plain, []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(packed, gzipped(t, sample), 0o644))

	tests := []struct {
		name   string
		path   string
		stdin  string
		checks func(t *testing.T, text string, err error)
	}{
		{
			name: "plain file",
			path: plain,
			checks: func(t *testing.T, text string, err error) {
				require.NoError(t, err)
				assert.Equal(t, sample, text)
			},
		},
		{
			name: "gzip file",
			path: packed,
			checks: func(t *testing.T, text string, err error) {
				require.NoError(t, err)
				assert.Equal(t, sample, text)
			},
		},
		{
			name:  "stdin",
			path:  Stdin,
			stdin: sample,
			checks: func(t *testing.T, text string, err error) {
				require.NoError(t, err)
				assert.Equal(t, sample, text)
			},
		},
		{
			name:  "one byte input",
			path:  Stdin,
			stdin: "x",
			checks: func(t *testing.T, text string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "x", text)
			},
		},
		{
			name: "missing file",
			path: filepath.Join(dir, "missing.log"),
			checks: func(t *testing.T, text string, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Read(tt.path, strings.NewReader(tt.stdin))
			tt.checks(t, text, err)
		})
	}
}

func TestRead_GzipStdin(t *testing.T) {
	text, err := Read(Stdin, bytes.NewReader(gzipped(t, sample)))
	require.NoError(t, err)
	assert.Equal(t, sample, text)
}

func TestIsLogFile(t *testing.T) {
	assert.True(t, IsLogFile("apex-07L000.log"))
	assert.True(t, IsLogFile("DEBUG.LOG.GZ"))
	assert.True(t, IsLogFile("export.txt"))
	assert.False(t, IsLogFile("notes.md"))
	assert.False(t, IsLogFile("archive.gz"))
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"b.log", "a.log.gz", "readme.md", filepath.Join("nested", "c.txt")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sample), 0o644))
	}
	single := filepath.Join(dir, "readme.md")

	got, err := Expand([]string{dir, single, Stdin})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.log.gz"),
		filepath.Join(dir, "b.log"),
		filepath.Join(sub, "c.txt"),
		single,
		Stdin,
	}, got)

	_, err = Expand([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
