// Command genmock writes synthetic SeaExplorer payload files for local runs
// and tests. Each file holds a number of dive/climb "yos" sampled at a fixed
// interval, with the realtime clock driven by a fake clock so the output is
// reproducible for a given seed and start time.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -files 12 -rows 400 -seed 7
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/jonboulle/clockwork"
)

var header = []string{
	"PLD_REALTIMECLOCK",
	"NAV_LATITUDE",
	"NAV_LONGITUDE",
	"NAV_DEPTH",
	"LEGATO_PRESSURE",
	"LEGATO_TEMPERATURE",
	"LEGATO_CONDUCTIVITY",
	"LEGATO_CODA_DO",
	"FLBBCD_CHL_SCALED",
	"FLBBCD_BB_700_SCALED",
}

type params struct {
	out        string
	glider     string
	mission    int
	files      int
	rows       int
	interval   time.Duration
	start      time.Time
	maxDepth   float64
	latitude   float64
	longitude  float64
	gapRate    float64
	emptyRows  int
	seed       uint64
	skipNumber int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var p params
	var start string
	flag.StringVar(&p.out, "out", "data/mock", "output directory")
	flag.StringVar(&p.glider, "glider", "sea074", "glider name used in file names")
	flag.IntVar(&p.mission, "mission", 67, "mission number used in file names")
	flag.IntVar(&p.files, "files", 3, "number of payload files")
	flag.IntVar(&p.rows, "rows", 200, "rows per file")
	flag.DurationVar(&p.interval, "interval", 2*time.Second, "sampling interval")
	flag.StringVar(&start, "start", "2024-06-01T00:00:00Z", "timestamp of the first sample (RFC 3339)")
	flag.Float64Var(&p.maxDepth, "max-depth", 200, "deepest point of each yo in metres")
	flag.Float64Var(&p.latitude, "lat", 28.646117, "starting latitude in decimal degrees")
	flag.Float64Var(&p.longitude, "lon", -15.5, "starting longitude in decimal degrees")
	flag.Float64Var(&p.gapRate, "gap-rate", 0.02, "fraction of sensor cells left empty")
	flag.IntVar(&p.emptyRows, "empty-rows", 1, "fully empty rows appended to each file")
	flag.Uint64Var(&p.seed, "seed", 1, "random seed")
	flag.IntVar(&p.skipNumber, "skip", 0, "sequence number to leave out, to simulate a lost file (0 keeps all)")
	flag.Parse()

	var err error
	if p.start, err = time.Parse(time.RFC3339, start); err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if p.files < 1 || p.rows < 1 {
		return fmt.Errorf("-files and -rows must be positive")
	}
	if err := os.MkdirAll(p.out, 0o755); err != nil {
		return err
	}

	paths, err := generate(p)
	if err != nil {
		return err
	}
	for _, path := range paths {
		log.Printf("wrote %s", path)
	}
	log.Printf("total: %d files, %d rows", len(paths), len(paths)*p.rows)
	return nil
}

// generate writes the payload files and returns their paths in sequence order.
func generate(p params) ([]string, error) {
	clock := clockwork.NewFakeClockAt(p.start.UTC())
	rng := rand.New(rand.NewPCG(p.seed, p.seed^0x9e3779b97f4a7c15))
	g := &glider{rng: rng, lat: p.latitude, lon: p.longitude, maxDepth: p.maxDepth}

	var paths []string
	for seq := 1; seq <= p.files; seq++ {
		var b strings.Builder
		b.WriteString(strings.Join(header, ";") + ";\n")
		for i := 0; i < p.rows; i++ {
			b.WriteString(g.sample(clock.Now(), p.gapRate))
			clock.Advance(p.interval)
		}
		for i := 0; i < p.emptyRows; i++ {
			b.WriteString(strings.Repeat(";", len(header)) + "\n")
		}

		if seq == p.skipNumber {
			continue
		}
		path := filepath.Join(p.out, fmt.Sprintf("%s.%d.pld1.raw.%d", p.glider, p.mission, seq))
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return nil, err
		}
		if rawfile.SequenceNumber(path) != seq {
			return nil, fmt.Errorf("generated name %s does not carry sequence %d", path, seq)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// glider is a crude yo-ing vehicle drifting north-east at the surface.
type glider struct {
	rng      *rand.Rand
	lat, lon float64
	maxDepth float64
	depth    float64
	diving   bool
}

func (g *glider) sample(at time.Time, gapRate float64) string {
	const rate = 0.2 // m per sample
	if g.diving {
		g.depth += rate * (1 + g.rng.Float64())
		if g.depth >= g.maxDepth {
			g.diving = false
		}
	} else {
		g.depth -= rate * (1 + g.rng.Float64())
		if g.depth <= 0 {
			g.depth = 0
			g.diving = true
			g.lat += 0.0005
			g.lon += 0.0005
		}
	}

	pressure := g.depth * 1.0065
	temp := 22 - 14*(1-math.Exp(-g.depth/80)) + g.rng.NormFloat64()*0.02
	sal := 36.6 - 0.6*(1-math.Exp(-g.depth/150))
	cond := conductivity(sal, temp)
	oxygen := 210 + 20*math.Exp(-math.Pow((g.depth-60)/25, 2)) - 0.1*g.depth + g.rng.NormFloat64()
	chl := 0.05 + 0.8*math.Exp(-math.Pow((g.depth-90)/20, 2))
	bb := 0.0008 + 0.0004*math.Exp(-g.depth/50)

	cells := []string{
		at.Format("02/01/2006 15:04:05.000"),
		ddmm(g.lat),
		ddmm(g.lon),
		format(g.depth, 3),
		format(pressure, 3),
		format(temp, 4),
		format(cond, 4),
		format(oxygen, 2),
		format(chl, 4),
		format(bb, 6),
	}
	// The clock is never blanked so rows always sort.
	for i := 1; i < len(cells); i++ {
		if g.rng.Float64() < gapRate {
			cells[i] = ""
		}
	}
	return strings.Join(cells, ";") + ";\n"
}

// conductivity approximates in-situ conductivity in mS/cm from practical
// salinity and temperature near the surface, good enough for mock data.
func conductivity(sal, temp float64) float64 {
	return 42.914 * (sal / 35) * (1 + 0.0205*(temp-15))
}

// ddmm encodes decimal degrees as the unsigned DDMM.MMMM value the glider
// navigation logs.
func ddmm(deg float64) string {
	a := math.Abs(deg)
	d := math.Floor(a)
	return format(d*100+(a-d)*60, 4)
}

func format(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
