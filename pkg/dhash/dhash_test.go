package dhash

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solid(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.Set(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	img := gradient(64, 64)
	assert.Equal(t, Compute(img), Compute(img))
}

func TestSolidImagesHashIdentically(t *testing.T) {
	t.Parallel()

	a := Compute(solid(color.White, 32, 32))
	b := Compute(solid(color.White, 32, 32))
	assert.Equal(t, a, b)
}

func TestDistanceAndNearDuplicate(t *testing.T) {
	t.Parallel()

	a := uint64(0xE6C0_1272_F884_CDF8)
	b := uint64(0xE6C0_1272_F884_CDF9)
	assert.Equal(t, 1, Distance(a, b))
	assert.True(t, NearDuplicate(a, b, DefaultMaxDistance))

	c := a ^ 0xFFFFFF0000000000 // differs in 24 high bits
	assert.Equal(t, 24, Distance(a, c))
	assert.False(t, NearDuplicate(a, c, DefaultMaxDistance))
}

func TestSplitJoinRoundTrip(t *testing.T) {
	t.Parallel()

	v := uint64(0xE6C0_1272_F884_CDF8)
	parts := Split(v)
	assert.Equal(t, v, parts.Join())
	assert.Equal(t, uint16(0xE6C0), parts[0])
	assert.Equal(t, uint16(0xCDF8), parts[3])
}
