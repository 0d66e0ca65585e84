package diagnostics

import (
	"io"
	"math"
	"os"

	"github.com/YuminosukeSato/ssvae/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DefaultFilename is written when no output path is given.
const DefaultFilename = "diagnostics.png"

// Figure size, 12x9 inches.
const (
	FigureWidth  = 12 * vg.Inch
	FigureHeight = 9 * vg.Inch
)

// MSERange is the fixed y-range of the validation MSE panel.
var MSERange = [2]float64{0, 2}

type panel struct {
	series    string
	title     string
	hideTicks bool
}

// 3x3 のパネル配置（行優先）
var panels = [3][3]panel{
	{
		{LossLabeled, "Labeled loss", true},
		{LossUnlabeled, "Unlabeled loss", true},
		{RecLabeled, "Labeled reconstruction loss", true},
	},
	{
		{RecUnlabeled, "Unlabeled reconstruction loss", true},
		{KLDLatentLabeled, "Labeled Latent KLDivergence", true},
		{KLDLatentUnlabeled, "Unlabeled Latent KLDivergence", true},
	},
	{
		{LogDensityLabeled, "Labeled LogDensity", false},
		{KLDTargetUnlabeled, "Unlabeled y KLD", false},
		{ValidationMSE, "Test MSE", false},
	},
}

// seriesXYs converts a series to plot points, dropping non-finite values.
func seriesXYs(values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}

func newPanel(rec *Record, p panel) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.title
	if p.hideTicks {
		pl.X.Tick.Marker = plot.ConstantTicks{}
	}

	if pts := seriesXYs(rec.Series(p.series)); len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "series %s", p.series)
		}
		pl.Add(line)
	}
	if p.series == ValidationMSE {
		pl.Y.Min, pl.Y.Max = MSERange[0], MSERange[1]
	}
	return pl, nil
}

// Render draws the nine-panel figure of rec and writes it to w as PNG.
func Render(rec *Record, w io.Writer) error {
	if rec == nil {
		return errors.NewValueError("diagnostics.Render", "record is nil")
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, row := range panels {
		plots[i] = make([]*plot.Plot, len(row))
		for j, p := range row {
			pl, err := newPanel(rec, p)
			if err != nil {
				return err
			}
			plots[i][j] = pl
		}
	}

	img := vgimg.New(FigureWidth, FigureHeight)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows:      len(panels),
		Cols:      len(panels[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, t, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to encode figure")
	}
	return nil
}

// Save renders rec into filename, or DefaultFilename when filename is empty.
func Save(rec *Record, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	f, err := os.Create(filename)
	if err != nil {
		return filename, errors.Wrapf(err, "failed to create %s", filename)
	}
	if err := Render(rec, f); err != nil {
		f.Close()
		return filename, err
	}
	return filename, errors.Wrap(f.Close(), "failed to close figure")
}
