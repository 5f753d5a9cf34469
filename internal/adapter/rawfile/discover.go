package rawfile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// File is one discovered raw payload file.
type File struct {
	Path     string
	Sequence int
}

// Window restricts discovery to an inclusive range of sequence numbers.
// A zero bound is unbounded.
type Window struct {
	Min int
	Max int
}

func (w Window) contains(seq int) bool {
	if w.Min > 0 && seq < w.Min {
		return false
	}
	if w.Max > 0 && seq > w.Max {
		return false
	}
	return true
}

// Discover expands glob patterns and literal paths into the set of raw files,
// ordered by their embedded sequence number. Files without a sequence number
// sort after numbered ones, by path. Duplicates are removed.
func Discover(patterns []string, w Window) ([]File, error) {
	seen := make(map[string]bool)
	var files []File
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expand pattern %q: %w", p, err)
		}
		if matches == nil && !hasMeta(p) {
			matches = []string{p}
		}
		for _, m := range matches {
			clean := filepath.Clean(m)
			if seen[clean] {
				continue
			}
			seen[clean] = true
			seq := SequenceNumber(clean)
			if seq >= 0 && !w.contains(seq) {
				continue
			}
			files = append(files, File{Path: clean, Sequence: seq})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Sequence < 0 && b.Sequence < 0:
			return a.Path < b.Path
		case a.Sequence < 0:
			return false
		case b.Sequence < 0:
			return true
		case a.Sequence != b.Sequence:
			return a.Sequence < b.Sequence
		default:
			return a.Path < b.Path
		}
	})
	return files, nil
}

// SequenceNumber extracts the payload sequence number from a file name:
// the digits following "raw.", else the last all-digit dot-separated
// component. It returns -1 when the name carries no number.
func SequenceNumber(path string) int {
	name := filepath.Base(path)
	if i := strings.LastIndex(name, "raw."); i >= 0 {
		if n, ok := leadingInt(name[i+len("raw."):]); ok {
			return n
		}
	}
	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if n, err := strconv.Atoi(parts[i]); err == nil && n >= 0 && parts[i] != "" {
			return n
		}
	}
	return -1
}

func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[\`)
}
