// Package export rasterizes a canvas element list to PNG.
package export

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"canvas-studio/internal/models"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	// One RGBA 8192x8192 frame is 256MB
	DefaultMaxWidth  = 8192
	DefaultMaxHeight = 8192

	defaultTextColor   = "#000000"
	defaultFillColor   = "#3b82f6"
	defaultStrokeColor = "#1e40af"
	defaultStrokeWidth = 2
	defaultFontSize    = 16
	imagePlaceholder   = "#f0f0f0"
)

// Renderer paints elements onto a white background
type Renderer struct {
	DefaultWidth  float64
	DefaultHeight float64
	MaxWidth      float64
	MaxHeight     float64
}

func NewRenderer(defaultWidth, defaultHeight float64) *Renderer {
	return &Renderer{
		DefaultWidth:  defaultWidth,
		DefaultHeight: defaultHeight,
		MaxWidth:      DefaultMaxWidth,
		MaxHeight:     DefaultMaxHeight,
	}
}

// WithMaxSize sets the largest frame RenderPNG accepts; values <= 0 keep the current cap
func (r *Renderer) WithMaxSize(maxWidth, maxHeight float64) *Renderer {
	if maxWidth > 0 {
		r.MaxWidth = maxWidth
	}
	if maxHeight > 0 {
		r.MaxHeight = maxHeight
	}
	return r
}

// RenderPNG uses the package defaults for a missing size
func RenderPNG(elements models.Elements, width, height float64) ([]byte, error) {
	return NewRenderer(DefaultWidth, DefaultHeight).RenderPNG(elements, width, height)
}

// RenderPNG paints elements in ascending zIndex order. Elements with equal
// zIndex keep list order. Sizes <= 0 fall back to the renderer defaults,
// fractional sizes round up to whole pixels and sizes above the renderer's
// maximum are rejected with a *models.ValidationError.
func (r *Renderer) RenderPNG(elements models.Elements, width, height float64) ([]byte, error) {
	if width <= 0 {
		width = r.DefaultWidth
	}
	if height <= 0 {
		height = r.DefaultHeight
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid export size %vx%v", width, height)
	}
	if err := r.checkSize(width, height); err != nil {
		return nil, err
	}

	dc := gg.NewContext(int(math.Ceil(width)), int(math.Ceil(height)))
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	ordered := make(models.Elements, len(elements))
	copy(ordered, elements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Base().ZIndex < ordered[j].Base().ZIndex
	})

	for _, el := range ordered {
		if err := draw(dc, el); err != nil {
			return nil, fmt.Errorf("failed to draw element %s: %w", el.Base().ID, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) checkSize(width, height float64) error {
	var fields []models.FieldError
	if r.MaxWidth > 0 && width > r.MaxWidth {
		fields = append(fields, models.FieldError{
			Field:   "width",
			Message: fmt.Sprintf("must be less than or equal to %v", r.MaxWidth),
		})
	}
	if r.MaxHeight > 0 && height > r.MaxHeight {
		fields = append(fields, models.FieldError{
			Field:   "height",
			Message: fmt.Sprintf("must be less than or equal to %v", r.MaxHeight),
		})
	}
	if len(fields) > 0 {
		return &models.ValidationError{Fields: fields}
	}
	return nil
}

// draw paints one element in its own coordinate space: origin at its
// top-left corner, rotated about its center
func draw(dc *gg.Context, el models.Element) error {
	b := el.Base()

	dc.Push()
	defer dc.Pop()

	dc.Translate(b.X+b.Width/2, b.Y+b.Height/2)
	dc.Rotate(gg.Radians(b.Rotation))
	dc.Translate(-b.Width/2, -b.Height/2)

	switch e := el.(type) {
	case *models.TextElement:
		return drawText(dc, e)
	case *models.ShapeElement:
		drawShape(dc, e)
	case *models.ImageElement:
		// Remote images are not fetched; the frame is kept
		dc.SetHexColor(imagePlaceholder)
		dc.DrawRectangle(0, 0, e.Width, e.Height)
		dc.Fill()
	}
	return nil
}

func drawText(dc *gg.Context, e *models.TextElement) error {
	size := e.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	face, err := fontFace(e.FontFamily, size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetHexColor(colorOr(e.Color, defaultTextColor))
	dc.DrawStringAnchored(e.Text, e.Width/2, e.Height/2, 0.5, 0.5)
	return nil
}

func drawShape(dc *gg.Context, e *models.ShapeElement) {
	switch e.ShapeType {
	case models.ShapeRectangle:
		dc.DrawRectangle(0, 0, e.Width, e.Height)
	case models.ShapeCircle:
		r := e.Width
		if e.Height < r {
			r = e.Height
		}
		dc.DrawCircle(e.Width/2, e.Height/2, r/2)
	case models.ShapeTriangle:
		dc.MoveTo(e.Width/2, 0)
		dc.LineTo(e.Width, e.Height)
		dc.LineTo(0, e.Height)
		dc.ClosePath()
	default:
		return
	}

	stroke := e.StrokeWidth
	if stroke <= 0 {
		stroke = defaultStrokeWidth
	}

	dc.SetHexColor(colorOr(e.FillColor, defaultFillColor))
	dc.FillPreserve()
	dc.SetHexColor(colorOr(e.StrokeColor, defaultStrokeColor))
	dc.SetLineWidth(stroke)
	dc.Stroke()
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

var namedColors = map[string]string{
	"black": "#000000",
	"white": "#ffffff",
	"red":   "#ff0000",
	"green": "#008000",
	"blue":  "#0000ff",
	"gray":  "#808080",
	"grey":  "#808080",
}

// colorOr returns a hex color gg understands, or fallback
func colorOr(c, fallback string) string {
	c = strings.TrimSpace(c)
	if hexColor.MatchString(c) {
		return c
	}
	if hex, ok := namedColors[strings.ToLower(c)]; ok {
		return hex
	}
	return fallback
}

var (
	fontsOnce sync.Once
	fontsErr  error
	fonts     map[string]*truetype.Font
)

func loadFonts() {
	fonts = make(map[string]*truetype.Font)
	for name, data := range map[string][]byte{
		"regular": goregular.TTF,
		"bold":    gobold.TTF,
		"mono":    gomono.TTF,
	} {
		f, err := truetype.Parse(data)
		if err != nil {
			fontsErr = fmt.Errorf("failed to parse %s font: %w", name, err)
			return
		}
		fonts[name] = f
	}
}

// fontFace maps a CSS-ish family name onto the bundled Go fonts
func fontFace(family string, size float64) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}

	f := strings.ToLower(family)
	key := "regular"
	switch {
	case strings.Contains(f, "mono"), strings.Contains(f, "courier"), strings.Contains(f, "consolas"):
		key = "mono"
	case strings.Contains(f, "impact"), strings.Contains(f, "bold"):
		key = "bold"
	}
	return truetype.NewFace(fonts[key], &truetype.Options{Size: size}), nil
}

var unsafeFilename = regexp.MustCompile(`(?i)[^a-z0-9]`)

// Filename turns a design title into the download name of its export
func Filename(title string) string {
	name := strings.ToLower(unsafeFilename.ReplaceAllString(title, "_"))
	if name == "" {
		name = "design"
	}
	return name + ".png"
}
