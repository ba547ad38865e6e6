// Thumbnail output is encoded as jpg (or gif for animated sources), not
// webp: no pure-Go webp encoder exists anywhere in this module's
// dependency set, and libwebp-cgo bindings aren't part of it either, so
// the closest real codec this module already carries (disintegration/
// imaging's JPEG encoder) stands in. The sharded chash path scheme and
// quality/size trade-offs are otherwise unchanged. See DESIGN.md.
package content

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"time"

	"github.com/disintegration/imaging"

	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/types"
)

// thumbsNS is the namespace under which every generated thumbnail is
// stored, shared across all real namespaces.
const thumbsNS = "thumbs"

// lockTTL bounds a per-(chash,size) generation lock.
const lockTTL = 30 * time.Second

// Thumbnailer generates and caches thumbnails.
type Thumbnailer struct {
	filecore       Downloader
	objects        types.ObjectStore
	cache          types.Cache
	maxSourceBytes int64
}

// Downloader is the subset of FileCore a Thumbnailer needs: looking up a
// row by ID and streaming its blob. A narrow interface here avoids
// internal/content importing internal/filecore's full surface just for
// two calls.
type Downloader interface {
	GetByID(ctx context.Context, id string) (types.File, error)
	Download(ctx context.Context, nsPath, p string) (io.ReadCloser, error)
}

// NewThumbnailer builds a Thumbnailer. maxSourceBytes bounds how large a
// source file may be before thumbnailing is refused as unavailable.
func NewThumbnailer(filecore Downloader, objects types.ObjectStore, cache types.Cache, maxSourceBytes int64) *Thumbnailer {
	return &Thumbnailer{filecore: filecore, objects: objects, cache: cache, maxSourceBytes: maxSourceBytes}
}

func storagePath(chash string, size int, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s_%d.%s", chash[:2], chash[2:4], chash[4:6], chash, size, ext)
}

func lockKey(chash string, size int) string {
	return fmt.Sprintf("generate_thumbnails:%s:%d", chash, size)
}

// Thumbnail returns file_id's thumbnail at size, generating and caching it
// on first request. The extension actually written depends on the
// source: static raster images encode as jpg (see the package doc for why
// not webp), animated GIF sources keep their animation as gif.
func (t *Thumbnailer) Thumbnail(ctx context.Context, fileID, chash string, size int) (io.ReadCloser, error) {
	if chash == "" {
		return nil, shelferrors.New(shelferrors.CodeThumbnailUnavailable, "file has no content hash yet")
	}

	if rc, err := t.tryExisting(ctx, chash, size); err == nil {
		return rc, nil
	}

	f, err := t.filecore.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if t.maxSourceBytes > 0 && f.Size > t.maxSourceBytes {
		return nil, shelferrors.New(shelferrors.CodeThumbnailUnavailable, "source file exceeds thumbnail size limit")
	}

	src, err := t.objects.Download(ctx, f.NSPath, f.Path)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return nil, err
	}

	thumb, ext, err := generate(f.MediaType, data, size)
	if err != nil {
		return nil, err
	}

	path := storagePath(chash, size, ext)
	if _, err := t.objects.Save(ctx, thumbsNS, path, bytes.NewReader(thumb)); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(thumb)), nil
}

// tryExisting checks both possible extensions (gif for animations, jpg for
// everything else) since the caller doesn't know up front which one a
// prior generation picked.
func (t *Thumbnailer) tryExisting(ctx context.Context, chash string, size int) (io.ReadCloser, error) {
	for _, ext := range []string{"jpg", "gif"} {
		path := storagePath(chash, size, ext)
		ok, err := t.objects.Exists(ctx, thumbsNS, path)
		if err == nil && ok {
			rc, err := t.objects.Download(ctx, thumbsNS, path)
			if err == nil {
				return rc, nil
			}
		}
	}
	return nil, shelferrors.New(shelferrors.CodeNotFound, "no cached thumbnail")
}

// GenerateThumbnails pre-generates size for every size, under a
// per-(chash,size) lock so concurrent requests (or nodes) don't duplicate
// the work.
func (t *Thumbnailer) GenerateThumbnails(ctx context.Context, fileID string, sizes []int) error {
	f, err := t.filecore.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if t.maxSourceBytes > 0 && f.Size > t.maxSourceBytes {
		return nil
	}
	if f.CHash == "" || !isSupported(f.MediaType) {
		return nil
	}

	var data []byte
	for _, size := range sizes {
		release, ok, err := t.cache.Lock(ctx, lockKey(f.CHash, size), lockTTL, true)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		err = func() error {
			defer release()

			for _, ext := range []string{"jpg", "gif"} {
				if exists, _ := t.objects.Exists(ctx, thumbsNS, storagePath(f.CHash, size, ext)); exists {
					return nil
				}
			}

			if data == nil {
				src, err := t.objects.Download(ctx, f.NSPath, f.Path)
				if err != nil {
					return err
				}
				data, err = io.ReadAll(src)
				src.Close()
				if err != nil {
					return err
				}
			}

			thumb, ext, err := generate(f.MediaType, data, size)
			if err != nil {
				if shelferrors.As(err, shelferrors.CodeThumbnailUnavailable) {
					return nil
				}
				return err
			}
			_, err = t.objects.Save(ctx, thumbsNS, storagePath(f.CHash, size, ext), bytes.NewReader(thumb))
			return err
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// isSupported reports whether mt is one of the types the thumbnailer
// knows how to render: images and PDFs. No PDF rasterizer is among this
// module's dependencies, so IsPDF always ends up ThumbnailUnavailable
// below; see DESIGN.md.
func isSupported(mt string) bool {
	return mediatype.IsImage(mt) || mediatype.IsPDF(mt)
}

// generate renders content at size, returning the encoded bytes and the
// extension they were encoded with.
func generate(mt string, content []byte, size int) ([]byte, string, error) {
	if mediatype.IsPDF(mt) {
		return nil, "", shelferrors.New(shelferrors.CodeThumbnailUnavailable, "PDF thumbnailing is not available in this build")
	}
	if !mediatype.IsImage(mt) {
		return nil, "", shelferrors.New(shelferrors.CodeThumbnailUnavailable, "unsupported media type: "+mt)
	}

	if mt == "image/gif" {
		if frames, delays, loop, ok := decodeAnimated(content); ok && len(frames) > 1 {
			return thumbnailAnimated(frames, delays, loop, size)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", shelferrors.Newf(shelferrors.CodeThumbnailUnavailable, "decode failed: %v", err)
	}

	resized := shrinkToFit(img, size)
	quality := qualityFor(size)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "jpg", nil
}

// qualityFor mirrors thumbnail_image._get_quality: larger targets trade
// fidelity for a smaller encode.
func qualityFor(size int) int {
	if size >= 1920 {
		return 65
	}
	return 80
}

// shrinkToFit resizes img to fit within size x size, preserving aspect
// ratio, but never upscales — matching PIL's Image.thumbnail semantics.
func shrinkToFit(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

func decodeAnimated(content []byte) ([]*image.Paletted, []int, int, bool) {
	g, err := gif.DecodeAll(bytes.NewReader(content))
	if err != nil {
		return nil, nil, 0, false
	}
	return g.Image, g.Delay, g.LoopCount, true
}

// thumbnailAnimated preserves every frame of an animated GIF, resizing
// each one the same way, unless the whole image already fits within size.
// Frames are never upscaled.
func thumbnailAnimated(frames []*image.Paletted, delays []int, loop, size int) ([]byte, string, error) {
	b := frames[0].Bounds()
	if b.Dx() < size && b.Dy() < size {
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, &gif.GIF{Image: frames, Delay: delays, LoopCount: loop}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "gif", nil
	}

	resizedFrames := make([]*image.Paletted, len(frames))
	for i, frame := range frames {
		resized := imaging.Fit(frame, size, size, imaging.Lanczos)
		dst := image.NewPaletted(resized.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(dst, resized.Bounds(), resized, image.Point{})
		resizedFrames[i] = dst
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &gif.GIF{Image: resizedFrames, Delay: delays, LoopCount: loop}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "gif", nil
}
