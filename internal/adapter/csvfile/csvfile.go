// Package csvfile persists mission tables as comma-separated files.
//
// Every CSV is accompanied by a "<file>.units.json" sidecar holding the
// column unit labels, so a table loaded back from disk carries the same
// conversion state it was written with. Files are written to a temporary
// name in the target directory and renamed into place once complete.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
)

// SidecarSuffix is appended to a CSV path to name its unit sidecar.
const SidecarSuffix = ".units.json"

// StampLayout formats the run timestamp embedded in output file names.
const StampLayout = "20060102_150405"

// FileName builds "<prefix>_<label>_<stamp>.csv".
func FileName(prefix, label string, stamp time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", prefix, label, stamp.UTC().Format(StampLayout))
}

// Store writes tables into one output directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Save writes t to name inside the store directory and returns the path.
func (s *Store) Save(name string, t *domain.Table) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := Write(path, t); err != nil {
		return "", err
	}
	s.logger.Info("table written", "file", path, "rows", t.Len(), "columns", t.Width())
	return path, nil
}

// Load reads a table previously written by Save.
func (s *Store) Load(path string) (*domain.Table, error) {
	return Load(path)
}

// Write atomically writes t as CSV to path along with its unit sidecar.
func Write(path string, t *domain.Table) error {
	if err := writeAtomic(path, func(w io.Writer) error { return encode(w, t) }); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	units := make(map[string]domain.Unit)
	for _, c := range t.Columns() {
		if c.Unit != domain.UnitNone {
			units[c.Name] = c.Unit
		}
	}
	err := writeAtomic(path+SidecarSuffix, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(units)
	})
	if err != nil {
		return fmt.Errorf("write unit sidecar for %s: %w", path, err)
	}
	return nil
}

func encode(w io.Writer, t *domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			rec[j] = c.Values[i].Text()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fill(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a CSV written by Write. Cells parse as timestamps in time
// columns, then as floats, then as strings; empty cells are missing. Unit
// labels come from the sidecar when present. Without one, native column
// names get their native unit and standard names their output unit.
func Load(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	units, err := readSidecar(path + SidecarSuffix)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bufio.NewReader(f))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	timeCols := make([]bool, len(header))
	for j, name := range header {
		u, ok := units[name]
		timeCols[j] = (ok && u == domain.UnitTimestamp) || domain.IsTimeColumn(name)
	}

	var rows [][]domain.Value
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make([]domain.Value, len(header))
		for j := range header {
			if j < len(rec) {
				row[j] = parseCell(rec[j], timeCols[j])
			}
		}
		rows = append(rows, row)
	}

	t, err := domain.NewTableFromRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for _, c := range t.Columns() {
		if u, ok := units[c.Name]; ok {
			c.Unit = u
		} else if units == nil {
			c.Unit = defaultUnit(c.Name)
		} else {
			c.Unit = domain.UnitNone
		}
	}
	return t, nil
}

func parseCell(cell string, isTime bool) domain.Value {
	if cell == "" {
		return domain.Missing()
	}
	if isTime {
		if ts, err := time.ParseInLocation(domain.TimeLayout, cell, time.UTC); err == nil {
			return domain.Time(ts)
		}
		if ts, err := time.Parse(time.RFC3339Nano, cell); err == nil {
			return domain.Time(ts)
		}
		return domain.String(cell)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
		return domain.Float(f)
	}
	return domain.String(cell)
}

// readSidecar returns nil, nil when the sidecar does not exist.
func readSidecar(path string) (map[string]domain.Unit, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read unit sidecar: %w", err)
	}
	units := make(map[string]domain.Unit)
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("decode unit sidecar %s: %w", path, err)
	}
	return units, nil
}

func defaultUnit(name string) domain.Unit {
	s, ok := domain.SensorByName(name)
	switch {
	case !ok:
		return domain.UnitNone
	case s.Native == name:
		return s.NativeUnit
	case s.Standard == name:
		return s.OutputUnit
	default:
		return domain.UnitNone
	}
}
