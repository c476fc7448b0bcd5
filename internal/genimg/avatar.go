package genimg

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const avatarGrid = 5

// AvatarPNG renders a deterministic identicon for a username: a 5x5
// mirrored pixel pattern seeded by SHA-256 of the name, scaled to the
// requested edge size. The same username always yields the same image.
func AvatarPNG(username string, size int) ([]byte, error) {
	if username == "" {
		return nil, fmt.Errorf("avatar username required")
	}
	if size <= 0 {
		size = 240
	}

	sum := sha256.Sum256([]byte(username))

	fg := color.NRGBA{R: sum[0], G: sum[1], B: sum[2], A: 255}
	bg := color.NRGBA{R: 240, G: 240, B: 245, A: 255}

	// Left 3 columns come from hash bits, right 2 mirror the left.
	var cells [avatarGrid][avatarGrid]bool
	bit := 0
	for x := 0; x < (avatarGrid+1)/2; x++ {
		for y := 0; y < avatarGrid; y++ {
			on := sum[3+bit/8]>>(bit%8)&1 == 1
			bit++
			cells[x][y] = on
			cells[avatarGrid-1-x][y] = on
		}
	}

	cell := size / avatarGrid
	edge := cell * avatarGrid
	img := image.NewNRGBA(image.Rect(0, 0, edge, edge))
	for x := 0; x < edge; x++ {
		for y := 0; y < edge; y++ {
			if cells[x/cell][y/cell] {
				img.Set(x, y, fg)
			} else {
				img.Set(x, y, bg)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode avatar png: %w", err)
	}
	return buf.Bytes(), nil
}
