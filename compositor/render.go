package compositor

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	wrapRatio    = 0.85
	lineSpacing  = 1.5
	shadowBlur   = 10
	shadowOffset = 2
)

var shadowColor = color.NRGBA{A: 128}

var (
	fontsMu sync.Mutex
	fonts   = map[string]*truetype.Font{}
)

// fontData maps a font family to an embedded typeface. Unknown families
// fall back to the regular face.
func fontData(family string) (string, []byte) {
	f := strings.ToLower(family)
	switch {
	case strings.Contains(f, "mono") || strings.Contains(f, "courier"):
		return "mono", gomono.TTF
	case strings.Contains(f, "bold"):
		return "bold", gobold.TTF
	}
	return "regular", goregular.TTF
}

func fontFace(family string, size float64) (font.Face, error) {
	name, data := fontData(family)

	fontsMu.Lock()
	defer fontsMu.Unlock()
	f, ok := fonts[name]
	if !ok {
		var err error
		f, err = truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", name, err)
		}
		fonts[name] = f
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// Wrap greedily fills lines with words while measure stays within maxWidth.
// A single word wider than maxWidth gets a line of its own.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) > maxWidth && current != "" {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// Render rasterizes sentence index of count: background, then the wrapped
// text centered with a soft drop shadow.
func Render(sentence string, index, count int, opts Options) (image.Image, error) {
	opts = opts.withDefaults()
	w, h := opts.Width, opts.Height

	textColor, err := parseColor(opts.TextColor)
	if err != nil {
		return nil, err
	}
	face, err := fontFace(opts.FontFamily, opts.FontSize)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	if err := fillBackground(dc, index, count, opts); err != nil {
		return nil, err
	}

	dc.SetFontFace(face)
	measure := func(s string) float64 {
		width, _ := dc.MeasureString(s)
		return width
	}
	lines := Wrap(sentence, float64(w)*wrapRatio, measure)

	lineHeight := opts.FontSize * lineSpacing
	startY := (float64(h)-float64(len(lines))*lineHeight)/2 + lineHeight/2

	shadow := gg.NewContext(w, h)
	shadow.SetFontFace(face)
	shadow.SetColor(shadowColor)
	drawLines(shadow, lines, float64(w)/2+shadowOffset, startY+shadowOffset, lineHeight)
	dc.DrawImage(imaging.Blur(shadow.Image(), shadowBlur/2), 0, 0)

	dc.SetColor(textColor)
	drawLines(dc, lines, float64(w)/2, startY, lineHeight)
	return dc.Image(), nil
}

func drawLines(dc *gg.Context, lines []string, x, y, lineHeight float64) {
	for i, line := range lines {
		dc.DrawStringAnchored(line, x, y+float64(i)*lineHeight, 0.5, 0.5)
	}
}

func fillBackground(dc *gg.Context, index, count int, opts Options) error {
	w, h := float64(dc.Width()), float64(dc.Height())

	var bg color.Color
	if opts.AnimateBackground && count > 0 {
		bg = sentenceBackground(index, count)
	} else {
		c, err := parseColor(opts.BackgroundColor)
		if err != nil {
			return err
		}
		bg = c
	}
	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	if !opts.GradientBackground {
		return nil
	}
	top, err := parseColor(opts.GradientColor1)
	if err != nil {
		return err
	}
	bottom, err := parseColor(opts.GradientColor2)
	if err != nil {
		return err
	}
	grad := gg.NewLinearGradient(0, 0, 0, h)
	grad.AddColorStop(0, top)
	grad.AddColorStop(1, bottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
	return nil
}
