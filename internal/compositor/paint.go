package compositor

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/smazurov/scenecast/internal/scene"
)

var (
	errNoCollaborator = errors.New("no capture backend for source kind")
	errNoFrame        = errors.New("no frame from device")
)

// Placeholder styling.
var (
	placeholderStroke = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	placeholderFill   = color.NRGBA{R: 59, G: 130, B: 246, A: 51}
	placeholderText   = color.White
)

const (
	placeholderStrokeWidth = 2
	labelOffsetX           = 10
	labelOffsetY           = 30
)

func rect(r scene.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// fill composites src over the area, respecting its alpha.
func fill(dst *image.RGBA, area image.Rectangle, src image.Image) {
	draw.Draw(dst, area.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
}

// blit scales img into the source bounds.
func blit(dst *image.RGBA, bounds scene.Rect, img image.Image) {
	target := rect(bounds)
	if target.Intersect(dst.Bounds()).Empty() {
		return
	}
	if img.Bounds().Size() == target.Size() {
		draw.Draw(dst, target, img, img.Bounds().Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, target, img, img.Bounds(), draw.Over, nil)
}

// paintPlaceholder draws the outline, the translucent fill and the source name.
func paintPlaceholder(dst *image.RGBA, src scene.Source) {
	r := rect(src.Bounds)
	stroke := image.NewUniform(placeholderStroke)
	w := placeholderStrokeWidth
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X-w/2, r.Min.Y-w/2, r.Max.X+w/2, r.Min.Y+w/2),
		image.Rect(r.Min.X-w/2, r.Max.Y-w/2, r.Max.X+w/2, r.Max.Y+w/2),
		image.Rect(r.Min.X-w/2, r.Min.Y-w/2, r.Min.X+w/2, r.Max.Y+w/2),
		image.Rect(r.Max.X-w/2, r.Min.Y-w/2, r.Max.X+w/2, r.Max.Y+w/2),
	} {
		fill(dst, edge, stroke)
	}
	fill(dst, r, image.NewUniform(placeholderFill))

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(placeholderText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X+labelOffsetX, r.Min.Y+labelOffsetY),
	}
	d.DrawString(src.Name)
}
