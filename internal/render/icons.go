package render

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/srwiley/rasterx"
)

// Icons are the thumbnails shown while a chart loads and after it failed.
type Icons struct {
	Loading image.Image
	Failed  image.Image
}

func DefaultIcons() Icons {
	return Icons{Loading: loadingIcon(), Failed: failedIcon()}
}

// LoadIcons reads icon images from disk; an empty path keeps the built-in icon.
func LoadIcons(loadingPath, failedPath string) (Icons, error) {
	icons := DefaultIcons()
	if loadingPath != "" {
		img, err := loadImage(loadingPath)
		if err != nil {
			return Icons{}, err
		}
		icons.Loading = img
	}
	if failedPath != "" {
		img, err := loadImage(failedPath)
		if err != nil {
			return Icons{}, err
		}
		icons.Failed = img
	}
	return icons, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open icon: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon %s: %w", path, err)
	}
	return img, nil
}

func loadingIcon() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	strokeCircle(img, Point{16, 16}, 12, 3, color.RGBA{200, 200, 200, 255})
	strokePaths(img, 3, colorBlue, rasterx.RoundCap, []Point{{16, 4}, {24.5, 7.5}, {28, 16}})
	return img
}

func failedIcon() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, ThumbSize, ThumbSize))
	fillRect(img, img.Bounds(), color.RGBA{240, 240, 240, 255})
	red := color.RGBA{200, 30, 30, 255}
	strokePaths(img, 10, red, rasterx.RoundCap,
		[]Point{{32, 32}, {96, 96}},
		[]Point{{96, 32}, {32, 96}},
	)
	return img
}
