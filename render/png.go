package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

const (
	DefaultCellSize = 40
	MinCellSize     = 4
	MaxCellSize     = 128

	// maxImageSide keeps exports of large maps within a sane size
	maxImageSide = 8192
)

// Options controls PNG export
type Options struct {
	CellSize   int
	Labels     bool
	GridLines  bool
	Background string
}

// DefaultOptions matches the editor's on-screen layout
func DefaultOptions() Options {
	return Options{CellSize: DefaultCellSize, Labels: true, GridLines: true}
}

func (o Options) normalized(width, height int) Options {
	if o.CellSize <= 0 {
		o.CellSize = DefaultCellSize
	}
	if o.CellSize < MinCellSize {
		o.CellSize = MinCellSize
	}
	if o.CellSize > MaxCellSize {
		o.CellSize = MaxCellSize
	}
	for o.CellSize > MinCellSize && (width*o.CellSize > maxImageSide || height*o.CellSize > maxImageSide) {
		o.CellSize--
	}
	return o
}

// Image draws the snapshot: one filled square per placed instance, outlined,
// with the city name or tile name centered on it
func Image(snap grid.Snapshot, cat *catalog.Catalog, opts Options) *image.RGBA {
	opts = opts.normalized(snap.Width, snap.Height)
	cs := opts.CellSize
	img := image.NewRGBA(image.Rect(0, 0, snap.Width*cs, snap.Height*cs))

	bg := emptyColor
	if c, ok := ParseColor(opts.Background); ok {
		bg = c
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	if opts.GridLines {
		for x := 0; x <= snap.Width; x++ {
			fillRect(img, x*cs, 0, x*cs+1, snap.Height*cs, gridLineColor)
		}
		for y := 0; y <= snap.Height; y++ {
			fillRect(img, 0, y*cs, snap.Width*cs, y*cs+1, gridLineColor)
		}
	}

	var face font.Face
	if opts.Labels {
		face = labelFace(cs)
	}

	for _, inst := range snap.Instances() {
		x1, y1 := inst.Origin.X*cs, inst.Origin.Y*cs
		x2, y2 := x1+inst.Size*cs, y1+inst.Size*cs

		fill := instanceColor(inst, cat)
		fillRect(img, x1, y1, x2, y2, fill)
		strokeRect(img, x1, y1, x2, y2, borderColor, 1)

		if opts.Labels {
			text := inst.Label
			if inst.Kind != catalog.City {
				text = string(inst.Kind)
			}
			if text != "" {
				drawCenteredText(img, face, text, x1, y1, x2, y2, textColorFor(fill))
			}
		}
	}
	return img
}

// EncodePNG writes the snapshot as a PNG image
func EncodePNG(w io.Writer, snap grid.Snapshot, cat *catalog.Catalog, opts Options) error {
	return png.Encode(w, Image(snap, cat, opts))
}

func instanceColor(inst grid.Instance, cat *catalog.Catalog) color.RGBA {
	if inst.Kind == catalog.City {
		if inst.Color != "" {
			return ColorOrFallback(inst.Color)
		}
		return ColorOrFallback(catalog.DefaultCityColor)
	}
	if name, ok := cat.DisplayColor(inst.Kind); ok {
		return ColorOrFallback(name)
	}
	return fallbackColor
}

func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	draw.Draw(img, image.Rect(x1, y1, x2, y2), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA, width int) {
	for i := 0; i < width; i++ {
		fillRect(img, x1+i, y1+i, x2-i, y1+i+1, c)
		fillRect(img, x1+i, y2-i-1, x2-i, y2-i, c)
		fillRect(img, x1+i, y1+i, x1+i+1, y2-i, c)
		fillRect(img, x2-i-1, y1+i, x2-i, y2-i, c)
	}
}

// drawCenteredText writes text in the box, shrinking it with an ellipsis when it
// does not fit
func drawCenteredText(img *image.RGBA, face font.Face, text string, x1, y1, x2, y2 int, c color.RGBA) {
	maxWidth := x2 - x1 - 4
	if maxWidth <= 0 {
		return
	}
	text = fitText(face, text, maxWidth)
	if text == "" {
		return
	}

	metrics := face.Metrics()
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()
	if textHeight > y2-y1 {
		return
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x1+(x2-x1-textWidth)/2, y1+(y2-y1-textHeight)/2+ascent),
	}
	d.DrawString(text)
}

func fitText(face font.Face, text string, maxWidth int) string {
	if font.MeasureString(face, text).Ceil() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		s := strings.TrimSpace(string(runes[:n])) + "…"
		if font.MeasureString(face, s).Ceil() <= maxWidth {
			return s
		}
	}
	return ""
}

var (
	goFontOnce sync.Once
	goFont     *opentype.Font
)

// labelFace returns a Go Regular face scaled to the cell size, or the fixed
// 7x13 face when the font cannot be loaded. Faces are not safe for concurrent
// use, so each export gets its own.
func labelFace(cellSize int) font.Face {
	goFontOnce.Do(func() {
		goFont, _ = opentype.Parse(goregular.TTF)
	})
	if goFont == nil {
		return basicfont.Face7x13
	}

	size := cellSize / 3
	if size < 6 {
		size = 6
	}
	face, err := opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
