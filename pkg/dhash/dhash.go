// Package dhash computes the perceptual difference-hash used to find
// near-duplicate images, and the 64-bit <-> 4x16-bit split used to store
// a Fingerprint as four indexable columns.
package dhash

import (
	"image"
	"image/color"
	"math/bits"

	"github.com/disintegration/imaging"
)

// Size is the hash side length; the resize target is (Size+1, Size) so each
// row yields Size adjacent-pixel comparisons, for Size*Size = 64 bits.
const Size = 8

// DefaultMaxDistance is the default near-duplicate Hamming-distance
// threshold. FindInFolder takes its threshold as an argument and does not
// read this constant.
const DefaultMaxDistance = 5

// Compute converts img to greyscale, resizes it to (Size+1, Size) and
// returns the 64-bit hash formed by comparing horizontally adjacent pixels.
func Compute(img image.Image) uint64 {
	grey := imaging.Grayscale(img)
	small := imaging.Resize(grey, Size+1, Size, imaging.Box)

	var hash uint64
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			left := luminance(small, x, y)
			right := luminance(small, x+1, y)
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}
	return hash
}

func luminance(img image.Image, x, y int) uint8 {
	g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
	return g.Y
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// NearDuplicate reports whether a and b are within maxDistance bits.
func NearDuplicate(a, b uint64, maxDistance int) bool {
	return Distance(a, b) <= maxDistance
}

// Parts is a 64-bit fingerprint split into four 16-bit columns, matching
// the FingerprintRepository's storage shape so near-duplicate search can
// use plain equality joins on any one part.
type Parts [4]uint16

// Split breaks v into four 16-bit parts, high to low.
func Split(v uint64) Parts {
	return Parts{
		uint16(v >> 48),
		uint16(v >> 32),
		uint16(v >> 16),
		uint16(v),
	}
}

// Join reassembles the 64-bit value from its four parts.
func (p Parts) Join() uint64 {
	return uint64(p[0])<<48 | uint64(p[1])<<32 | uint64(p[2])<<16 | uint64(p[3])
}
