package compositor

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/drewmudry/captioncast/models"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultFontSize      = 48
	DefaultBackground    = "#1a1a2e"
	DefaultGradientStart = "#1a1a2e"
	DefaultGradientEnd   = "#16213e"
	DefaultTextColor     = "#ffffff"

	PreviewWidth  = 640
	PreviewHeight = 360

	MaxWidth    = 3840
	MaxHeight   = 2160
	MaxFontSize = 400
)

// Options controls how sentences are rasterized. Zero values take the
// defaults above.
type Options struct {
	Width  int
	Height int

	BackgroundColor    string
	GradientBackground bool
	GradientColor1     string
	GradientColor2     string
	// AnimateBackground rotates the background hue across sentences.
	AnimateBackground bool

	FontSize   float64
	FontFamily string
	TextColor  string

	// OnProgress is called after each sentence is rendered.
	OnProgress func(done, total int)
}

// FromRenderOptions maps stored export options onto compositor options.
func FromRenderOptions(o models.RenderOptions) Options {
	return Options{
		Width:              o.Width,
		Height:             o.Height,
		BackgroundColor:    o.BackgroundColor,
		GradientBackground: o.GradientBackground,
		GradientColor1:     o.GradientColor1,
		GradientColor2:     o.GradientColor2,
		AnimateBackground:  o.AnimateBackground,
		FontSize:           o.FontSize,
		FontFamily:         o.FontFamily,
		TextColor:          o.TextColor,
	}
}

// Validate rejects sizes outside 0..max and colors that do not parse.
// Zero sizes and empty colors are allowed and take the defaults.
func (o Options) Validate() error {
	if o.Width < 0 || o.Width > MaxWidth {
		return fmt.Errorf("%w: width %d not in 0..%d", ErrInvalidOptions, o.Width, MaxWidth)
	}
	if o.Height < 0 || o.Height > MaxHeight {
		return fmt.Errorf("%w: height %d not in 0..%d", ErrInvalidOptions, o.Height, MaxHeight)
	}
	if math.IsNaN(o.FontSize) || o.FontSize < 0 || o.FontSize > MaxFontSize {
		return fmt.Errorf("%w: font size %v not in 0..%d", ErrInvalidOptions, o.FontSize, MaxFontSize)
	}
	for _, c := range []string{o.BackgroundColor, o.GradientColor1, o.GradientColor2, o.TextColor} {
		if c == "" {
			continue
		}
		if _, err := parseColor(c); err != nil {
			return err
		}
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = DefaultBackground
	}
	if o.GradientColor1 == "" {
		o.GradientColor1 = DefaultGradientStart
	}
	if o.GradientColor2 == "" {
		o.GradientColor2 = DefaultGradientEnd
	}
	if o.TextColor == "" {
		o.TextColor = DefaultTextColor
	}
	return o
}

// parseColor accepts #rgb and #rrggbb hex colors.
func parseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[0] == '#' {
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// sentenceBackground is the hue-rotated background for sentence i of n.
func sentenceBackground(i, n int) color.Color {
	return colorful.Hsl(float64(i)*360/float64(n), 0.4, 0.15).Clamped()
}
