package mount

import (
	"context"
	"strings"

	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// Resolver translates display paths into real paths across namespace
// boundaries by consulting the mount table.
type Resolver struct {
	mounts types.MountRepository
}

// NewResolver builds a Resolver over the given mount repository.
func NewResolver(mounts types.MountRepository) *Resolver {
	return &Resolver{mounts: mounts}
}

// ResolvePath returns the true location a display path maps to. If a mount
// matches (the deepest one whose display path is a prefix of p), the
// result points into the mount's source namespace with the display
// prefix rewritten onto the source path. Otherwise p is returned unchanged.
func (rv *Resolver) ResolvePath(ctx context.Context, nsPath, p string) (types.ResolvedPath, error) {
	target := path.New(p)
	mp, err := rv.mounts.GetClosest(ctx, nsPath, target.String())
	if err != nil {
		return types.ResolvedPath{}, err
	}
	if mp == nil {
		return types.ResolvedPath{NSPath: nsPath, Path: target.String()}, nil
	}

	displayPath := mp.DisplayPath()
	suffix := target.String()[len(displayPath.String()):]
	realPath := path.New(mp.Source.Path + suffix)

	return types.ResolvedPath{
		NSPath:     mp.Source.NSPath,
		Path:       realPath.String(),
		MountPoint: mp,
	}, nil
}

// ReversePathBatch maps a set of real (ns, path) source locations back to
// their display path inside target, for every source that is in fact
// exposed into target by some mount. Sources with no mount into target are
// omitted from the result.
func (rv *Resolver) ReversePathBatch(ctx context.Context, target string, sources []types.PathRef) (map[types.PathRef]string, error) {
	out := make(map[types.PathRef]string, len(sources))
	// Cache GetClosestBySource results per (source ns, source path) so a
	// source listed more than once is looked up only once.
	cache := make(map[string]*types.MountPoint)

	for _, src := range sources {
		cacheKey := strings.ToLower(src.NSPath) + "\x00" + strings.ToLower(src.Path)
		mp, ok := cache[cacheKey]
		if !ok {
			m, err := rv.mounts.GetClosestBySource(ctx, src.NSPath, src.Path, target)
			if err != nil {
				return nil, err
			}
			mp = m
			cache[cacheKey] = mp
		}
		if mp == nil {
			continue
		}

		sourcePrefix := path.New(mp.Source.Path)
		srcPath := path.New(src.Path)
		suffix := srcPath.String()[len(sourcePrefix.String()):]
		displayPath := mp.DisplayPath()
		out[src] = path.New(displayPath.String() + suffix).String()
	}
	return out, nil
}
