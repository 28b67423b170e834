package main

import (
	"encoding/csv"
	"runtime"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// BenchResult is one CSV row.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
	PageReads int64
	CacheHits int64
}

var csvHeader = []string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects", "PageReads", "CacheHits"}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// GetDetailedMem measures live heap after a forced GC.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
		strconv.FormatInt(res.PageReads, 10),
		strconv.FormatInt(res.CacheHits, 10),
	})
}

// SaveChart draws one bar group per operation with one bar per structure
// and writes it as an image; the format follows the file extension.
func SaveChart(results []BenchResult, path string) error {
	var ops, series []string
	latency := make(map[string]map[string]float64)
	for _, r := range results {
		label := r.Name + " " + r.Config
		if _, ok := latency[label]; !ok {
			latency[label] = make(map[string]float64)
			series = append(series, label)
		}
		if !slices.Contains(ops, r.Operation) {
			ops = append(ops, r.Operation)
		}
		latency[label][r.Operation] = float64(r.LatencyNs)
	}

	p := plot.New()
	p.Title.Text = "Latency per operation"
	p.Y.Label.Text = "ns/op"

	width := vg.Points(60 / float64(max(len(series), 1)))
	for i, s := range series {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = latency[s][op]
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return errors.Wrapf(err, "chart series %s", s)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(i-len(series)/2)
		p.Add(bars)
		p.Legend.Add(s, bars)
	}
	p.Legend.Top = true
	p.NominalX(ops...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
