// Package mount implements mount-point resolution and placement:
// translating display paths into real paths across namespace boundaries,
// and placing new mounts without creating cycles.
package mount

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shelfcloud/core/pkg/path"
)

// siblingPattern matches "<quoted stem> (<N>)<quoted suffix>" against a
// sibling's full name, used by GetAvailablePath to count how many
// "stem (k).suffix" siblings already exist.
func siblingPattern(stem, suffix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(stem) + ` \((\d+)\)` + regexp.QuoteMeta(suffix) + `$`)
}

// CountFunc reports how many existing entries in some scope match pattern.
type CountFunc func(ctx context.Context, pattern *regexp.Regexp) (int, error)

// ExistsFunc reports whether p is already taken in some scope.
type ExistsFunc func(ctx context.Context, p path.Path) (bool, error)

// GetAvailablePath returns p unchanged if free, else the smallest
// "stem (N).suffix" that is free, where N is at least count+1 among
// existing siblings matching the pattern. It is shared by
// FileCore.CreateFile (free file names, via FileRepository.CountByPathPattern)
// and sharing.Service.AddMember (free mount display names, via
// MountRepository.CountByNamePattern).
func GetAvailablePath(ctx context.Context, p path.Path, exists ExistsFunc, count CountFunc) (path.Path, error) {
	taken, err := exists(ctx, p)
	if err != nil {
		return path.Path{}, err
	}
	if !taken {
		return p, nil
	}

	stem, suffix := p.Stem(), p.Suffix()
	pattern := siblingPattern(stem, suffix)
	n, err := count(ctx, pattern)
	if err != nil {
		return path.Path{}, err
	}

	for candidateN := n + 1; ; candidateN++ {
		candidate := p.WithStem(fmt.Sprintf("%s (%d)", stem, candidateN))
		takenCandidate, err := exists(ctx, candidate)
		if err != nil {
			return path.Path{}, err
		}
		if !takenCandidate {
			return candidate, nil
		}
	}
}
