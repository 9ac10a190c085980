package imagesource

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// Scale shrinks b to at most width pixels wide, keeping the aspect ratio and
// the original encoding. Images already narrow enough are returned as is.
func Scale(b *Blob, width int) (*Blob, error) {
	if width <= 0 {
		return b, nil
	}

	src, format, err := image.Decode(bytes.NewReader(b.Data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return b, nil
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
		b = &Blob{ContentType: "image/png"}
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
		b = &Blob{ContentType: "image/jpeg"}
	}
	if err != nil {
		return nil, fmt.Errorf("encode scaled image: %w", err)
	}
	b.Data = buf.Bytes()
	return b, nil
}

// Placeholder renders a grey card with msg, shown when an image cannot be loaded.
func Placeholder(width, height int, msg string) (*Blob, error) {
	if width <= 0 {
		width = 400
	}
	if height <= 0 {
		height = width * 3 / 4
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.92, 0.92, 0.92)
	dc.Clear()
	dc.SetRGB(0.75, 0.75, 0.75)
	dc.SetLineWidth(4)
	dc.DrawRectangle(2, 2, float64(width-4), float64(height-4))
	dc.Stroke()
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.DrawStringWrapped(msg, float64(width)/2, float64(height)/2, 0.5, 0.5, float64(width)*0.8, 1.5, gg.AlignCenter)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return &Blob{Data: buf.Bytes(), ContentType: "image/png"}, nil
}
