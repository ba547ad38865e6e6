package db

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// MountRepository is an in-memory types.MountRepository, indexed by the
// namespace the mount is visible in so GetClosest can scan a bounded set.
type MountRepository struct {
	mu   sync.RWMutex
	byID map[string]*types.MountPoint
	// byFolderNS groups mount IDs by the namespace they appear in
	// (Folder.NSPath), the set GetClosest/ListAll/CountByNamePattern scan.
	byFolderNS map[string][]string
}

// NewMountRepository returns an empty repository.
func NewMountRepository() *MountRepository {
	return &MountRepository{
		byID:       make(map[string]*types.MountPoint),
		byFolderNS: make(map[string][]string),
	}
}

var _ types.MountRepository = (*MountRepository)(nil)

func nsKey(ns string) string { return strings.ToLower(ns) }

// GetClosest returns the deepest mount in nsPath whose display path is a
// prefix of displayPath.
func (r *MountRepository) GetClosest(ctx context.Context, nsPath, displayPath string) (*types.MountPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target := path.New(displayPath)
	var best *types.MountPoint
	var bestLen int
	for _, id := range r.byFolderNS[nsKey(nsPath)] {
		mp := r.byID[id]
		if mp == nil {
			continue
		}
		dp := mp.DisplayPath()
		if target.IsRelativeTo(dp) && len(dp.String()) >= bestLen {
			cp := *mp
			best = &cp
			bestLen = len(dp.String())
		}
	}
	return best, nil
}

// GetClosestBySource finds a mount exposing sourcePath (or an ancestor of
// it) from sourceNS into targetNS, the reverse direction of GetClosest.
func (r *MountRepository) GetClosestBySource(ctx context.Context, sourceNS, sourcePath, targetNS string) (*types.MountPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target := path.New(sourcePath)
	var best *types.MountPoint
	var bestLen int
	for _, id := range r.byFolderNS[nsKey(targetNS)] {
		mp := r.byID[id]
		if mp == nil || !strings.EqualFold(mp.Source.NSPath, sourceNS) {
			continue
		}
		sp := path.New(mp.Source.Path)
		if target.IsRelativeTo(sp) && len(sp.String()) >= bestLen {
			cp := *mp
			best = &cp
			bestLen = len(sp.String())
		}
	}
	return best, nil
}

// ListAll returns every mount visible inside nsPath.
func (r *MountRepository) ListAll(ctx context.Context, nsPath string) ([]types.MountPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.MountPoint
	for _, id := range r.byFolderNS[nsKey(nsPath)] {
		if mp := r.byID[id]; mp != nil {
			out = append(out, *mp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out, nil
}

// Save inserts a mount point, rejecting a display name collision within
// the same folder: display names must stay unique within a containing
// folder.
func (r *MountRepository) Save(ctx context.Context, mp types.MountPoint) (types.MountPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.byFolderNS[nsKey(mp.Folder.NSPath)] {
		existing := r.byID[id]
		if existing == nil || existing.ID == mp.ID {
			continue
		}
		if strings.EqualFold(existing.Folder.Path, mp.Folder.Path) && strings.EqualFold(existing.DisplayName, mp.DisplayName) {
			return types.MountPoint{}, errors.New(errors.CodeAlreadyExists, "mount already exists with display name: "+mp.DisplayName)
		}
	}

	if mp.ID == "" {
		mp.ID = newID()
	}
	cp := mp
	r.byID[cp.ID] = &cp
	k := nsKey(mp.Folder.NSPath)
	r.byFolderNS[k] = append(r.byFolderNS[k], cp.ID)
	return cp, nil
}

// Update changes a mount's folder placement and/or display name.
func (r *MountRepository) Update(ctx context.Context, id string, folder types.PathRef, displayName string) (types.MountPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mp, ok := r.byID[id]
	if !ok {
		return types.MountPoint{}, errors.New(errors.CodeMountNotFound, "mount not found: "+id)
	}

	oldKey := nsKey(mp.Folder.NSPath)
	mp.Folder = folder
	mp.DisplayName = displayName

	newKey := nsKey(folder.NSPath)
	if oldKey != newKey {
		r.byFolderNS[oldKey] = removeID(r.byFolderNS[oldKey], id)
		r.byFolderNS[newKey] = append(r.byFolderNS[newKey], id)
	}
	return *mp, nil
}

// CountByNamePattern counts mounts in folderPath whose display name
// matches pattern, used to pick a free display name.
func (r *MountRepository) CountByNamePattern(ctx context.Context, nsPath, folderPath string, pattern *regexp.Regexp) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, id := range r.byFolderNS[nsKey(nsPath)] {
		mp := r.byID[id]
		if mp == nil || !strings.EqualFold(mp.Folder.Path, folderPath) {
			continue
		}
		if pattern.MatchString(mp.DisplayName) {
			count++
		}
	}
	return count, nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
