// Package saar provides Absolute Salinity Anomaly Ratio sources for the
// TEOS-10 density model.
package saar

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrIncompleteGrid is returned when the table does not cover every
// longitude/latitude combination.
var ErrIncompleteGrid = errors.New("saar grid is incomplete")

// Grid is a regular longitude/latitude table of surface anomaly ratios,
// bilinearly interpolated. Positions outside the grid have a ratio of 0.
type Grid struct {
	lons   []float64
	lats   []float64
	values [][]float64 // values[latIdx][lonIdx]; NaN marks land
}

// LoadGrid reads a grid from a CSV file with the columns longitude,
// latitude, saar. Lines starting with '#' are comments.
func LoadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open saar table: %w", err)
	}
	defer f.Close()
	g, err := ReadGrid(f)
	if err != nil {
		return nil, fmt.Errorf("saar table %s: %w", path, err)
	}
	return g, nil
}

// ReadGrid parses grid rows from r. A header row is optional. Empty or
// non-numeric saar cells are treated as land.
func ReadGrid(r io.Reader) (*Grid, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	type point struct{ lon, lat, v float64 }
	var points []point
	lonSet := map[float64]bool{}
	latSet := map[float64]bool{}
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errLon != nil || errLat != nil {
			if line == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid position %q,%q", line+1, rec[0], rec[1])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			v = math.NaN()
		}
		points = append(points, point{lon, lat, v})
		lonSet[lon] = true
		latSet[lat] = true
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrIncompleteGrid)
	}

	g := &Grid{lons: sortedKeys(lonSet), lats: sortedKeys(latSet)}
	g.values = make([][]float64, len(g.lats))
	filled := make([][]bool, len(g.lats))
	for i := range g.values {
		g.values[i] = make([]float64, len(g.lons))
		filled[i] = make([]bool, len(g.lons))
	}
	for _, p := range points {
		i := sort.SearchFloat64s(g.lats, p.lat)
		j := sort.SearchFloat64s(g.lons, p.lon)
		g.values[i][j] = p.v
		filled[i][j] = true
	}
	for i := range filled {
		for j := range filled[i] {
			if !filled[i][j] {
				return nil, fmt.Errorf("%w: no value at lon %g lat %g", ErrIncompleteGrid, g.lons[j], g.lats[i])
			}
		}
	}
	return g, nil
}

// AnomalyRatio implements domain.AnomalySource. Land nodes are excluded
// from the interpolation; if all four surrounding nodes are land, or the
// position lies outside the grid, the ratio is 0.
func (g *Grid) AnomalyRatio(_ context.Context, _ float64, lon, lat float64) (float64, error) {
	j, tx, ok := bracket(g.lons, lon)
	if !ok {
		return 0, nil
	}
	i, ty, ok := bracket(g.lats, lat)
	if !ok {
		return 0, nil
	}

	corners := [4]struct{ v, w float64 }{
		{g.at(i, j), (1 - tx) * (1 - ty)},
		{g.at(i, j+1), tx * (1 - ty)},
		{g.at(i+1, j), (1 - tx) * ty},
		{g.at(i+1, j+1), tx * ty},
	}
	var sum, wsum float64
	for _, c := range corners {
		if math.IsNaN(c.v) {
			continue
		}
		sum += c.v * c.w
		wsum += c.w
	}
	if wsum == 0 {
		return 0, nil
	}
	return sum / wsum, nil
}

func (g *Grid) at(i, j int) float64 {
	if i >= len(g.lats) || j >= len(g.lons) {
		return math.NaN()
	}
	return g.values[i][j]
}

// bracket finds the cell containing x and the fractional offset inside it.
// A single-node axis matches only its own coordinate.
func bracket(axis []float64, x float64) (int, float64, bool) {
	n := len(axis)
	if n == 0 || x < axis[0] || x > axis[n-1] {
		return 0, 0, false
	}
	if n == 1 {
		return 0, 0, true
	}
	k := sort.SearchFloat64s(axis, x)
	if k == 0 {
		return 0, 0, true
	}
	if k == n {
		k = n - 1
	}
	lo, hi := axis[k-1], axis[k]
	return k - 1, (x - lo) / (hi - lo), true
}

func sortedKeys(m map[float64]bool) []float64 {
	out := make([]float64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}
