package content

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/shelfcloud/core/pkg/mediatype"
	"github.com/shelfcloud/core/pkg/types"
)

// extractMetadata reads structural image metadata from data. No EXIF
// parser lives anywhere in this module's dependency set, so this is
// scoped down to the one field every registered image codec can always
// report: pixel dimensions. Returns ok=false when mt isn't a decodable
// image or the header can't be parsed.
func extractMetadata(mt string, data []byte) (types.ContentMetadata, bool) {
	if !mediatype.IsImage(mt) {
		return types.ContentMetadata{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.ContentMetadata{}, false
	}
	return types.ContentMetadata{
		Data: map[string]any{
			"type":   "image_dimensions",
			"width":  cfg.Width,
			"height": cfg.Height,
		},
	}, true
}
