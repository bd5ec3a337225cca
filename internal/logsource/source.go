package logsource

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Stdin is the path that selects standard input
const Stdin = "-"

var gzipMagic = []byte{0x1f, 0x8b}

// Read returns the whole log text from path, or from stdin for "-".
// Gzip-compressed input is detected by its header and decompressed.
func Read(path string, stdin io.Reader) (string, error) {
	if path == Stdin {
		return readAll(stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	return readAll(file)
}

func readAll(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	// Peek fails on inputs shorter than the magic; those are plain text
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		return drain(gz)
	}
	return drain(br)
}

func drain(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read log: %w", err)
	}
	return string(data), nil
}

// IsLogFile reports whether a file name looks like a saved debug log
func IsLogFile(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".txt")
}

// Expand resolves paths into log files: directories are walked recursively
// for *.log, *.txt and their .gz forms, files and "-" are kept as given.
// Directory results are sorted so repeated runs see the same order.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if p == Stdin {
			out = append(out, p)
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		var found []string
		err = filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				// Skip inaccessible directories
				log.Warn().Err(err).Str("path", path).Msg("Skipping inaccessible path")
				return nil
			}
			if !fi.IsDir() && IsLogFile(fi.Name()) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", p, err)
		}
		sort.Strings(found)

		log.Debug().Str("dir", p).Int("logs", len(found)).Msg("Log scan complete")
		out = append(out, found...)
	}
	return out, nil
}
