package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 8 * vg.Inch
	timeFormat  = "15:04:05"
)

// ChartExporter re-renders the three panel PNG after every cycle.
type ChartExporter struct {
	path string
}

func NewChartExporter(path string) *ChartExporter {
	return &ChartExporter{path: path}
}

func (e *ChartExporter) Name() string { return "chart" }

func (e *ChartExporter) Export(_ context.Context, snapshot storage.Snapshot) error {
	var buf bytes.Buffer
	if err := RenderChart(&buf, snapshot); err != nil {
		return err
	}
	return storage.WriteFileAtomic(e.path, buf.Bytes())
}

// RenderChart draws site latency, DNS latency and bandwidth panels stacked on
// a shared time axis. Unavailable readings leave gaps.
func RenderChart(w io.Writer, snapshot storage.Snapshot) error {
	sites := newPanel("Site latency (ms)", "Latency (ms)")
	resolvers := newPanel("DNS resolution time (ms)", "Time (ms)")
	bandwidth := newPanel("Bandwidth", "Speed (Mbps)")

	siteLines, dnsLines := 0, 0
	for _, target := range snapshot.Targets {
		xys := latencyPoints(snapshot.Samples, target)
		switch target.Kind {
		case models.KindHTTP:
			if err := addLine(sites, target.URL, xys, siteLines); err != nil {
				return err
			}
			siteLines++
		case models.KindPing:
			if err := addLine(sites, "ping "+target.Host, xys, siteLines); err != nil {
				return err
			}
			siteLines++
		case models.KindDNS:
			if err := addLine(resolvers, "DNS "+target.Resolver, xys, dnsLines); err != nil {
				return err
			}
			dnsLines++
		}
	}

	down, up := bandwidthPoints(snapshot.Samples)
	if err := addLine(bandwidth, "Download (Mbps)", down, 0); err != nil {
		return err
	}
	if err := addLine(bandwidth, "Upload (Mbps)", up, 1); err != nil {
		return err
	}

	img := vgimg.New(chartWidth, chartHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      3,
		Cols:      1,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
	}
	panels := [][]*plot.Plot{{sites}, {resolvers}, {bandwidth}}
	canvases := plot.Align(panels, tiles, dc)
	for row := range panels {
		panels[row][0].Draw(canvases[row][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}

func newPanel(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: timeFormat}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, label string, xys plotter.XYs, idx int) error {
	if len(xys) == 0 {
		return nil
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("plot %s: %w", label, err)
	}
	line.Color = plotutil.Color(idx)
	points.Color = plotutil.Color(idx)
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add(label, line, points)
	return nil
}

func latencyPoints(samples []models.Sample, target models.Target) plotter.XYs {
	xys := make(plotter.XYs, 0, len(samples))
	for _, sample := range samples {
		m := sample.Measurement(target)
		if !m.Available {
			continue
		}
		xys = append(xys, plotter.XY{X: unixSeconds(sample), Y: m.LatencyMS})
	}
	return xys
}

func bandwidthPoints(samples []models.Sample) (down, up plotter.XYs) {
	for _, sample := range samples {
		if sample.Bandwidth == nil {
			continue
		}
		x := unixSeconds(sample)
		down = append(down, plotter.XY{X: x, Y: sample.Bandwidth.DownloadMbps})
		up = append(up, plotter.XY{X: x, Y: sample.Bandwidth.UploadMbps})
	}
	return down, up
}

func unixSeconds(sample models.Sample) float64 {
	return float64(sample.Timestamp.UnixNano()) / 1e9
}
