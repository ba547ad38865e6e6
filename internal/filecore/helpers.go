package filecore

import (
	"context"
	"strings"

	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// applyDelta adds delta to the size of every path in one namespace,
// skipping the call entirely for a zero delta.
func applyDelta(ctx context.Context, files types.FileRepository, nsPath string, paths []path.Path, delta int64) error {
	if delta == 0 || len(paths) == 0 {
		return nil
	}
	strs := make([]string, len(paths))
	for i, p := range paths {
		strs[i] = p.String()
	}
	return files.IncrSizeBatch(ctx, nsPath, strs, delta)
}

// ancestorRefs builds a casefold-keyed set of (ns, path) references for a
// set of ancestor paths, used by Move to diff the ancestor sets a moved
// item leaves and joins so common prefixes across namespaces aren't
// double-counted.
func ancestorRefs(nsPath string, parents []path.Path) map[string]types.NSPathRef {
	m := make(map[string]types.NSPathRef, len(parents))
	for _, p := range parents {
		k := strings.ToLower(nsPath) + "\x00" + p.Key()
		m[k] = types.NSPathRef{NSPath: nsPath, Path: p.String()}
	}
	return m
}

// diffRefs returns the entries present only in a, and only in b.
func diffRefs(a, b map[string]types.NSPathRef) (onlyA, onlyB []types.NSPathRef) {
	for k, v := range a {
		if _, ok := b[k]; !ok {
			onlyA = append(onlyA, v)
		}
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			onlyB = append(onlyB, v)
		}
	}
	return
}

// applyRefDelta groups refs by namespace and applies delta to each via
// IncrSizeBatch, skipping empty groups.
func applyRefDelta(ctx context.Context, files types.FileRepository, refs []types.NSPathRef, delta int64) error {
	if delta == 0 || len(refs) == 0 {
		return nil
	}
	byNS := make(map[string][]string)
	for _, r := range refs {
		byNS[r.NSPath] = append(byNS[r.NSPath], r.Path)
	}
	for ns, paths := range byNS {
		if err := files.IncrSizeBatch(ctx, ns, paths, delta); err != nil {
			return err
		}
	}
	return nil
}
