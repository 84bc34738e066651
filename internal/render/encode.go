package render

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// thumbnail scales img to the fixed thumbnail size.
func thumbnail(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, ThumbSize, ThumbSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
