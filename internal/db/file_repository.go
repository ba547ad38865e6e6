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

// FileRepository is an in-memory types.FileRepository, indexed by (nsPath,
// path) for lookups and by ID for the ID-keyed accessors.
type FileRepository struct {
	mu      sync.RWMutex
	byPath  map[string]*types.File // key(nsPath, path) -> file
	byID    map[string]*types.File
	byCHash map[string][]string // chash -> file IDs
}

// NewFileRepository returns an empty repository.
func NewFileRepository() *FileRepository {
	return &FileRepository{
		byPath:  make(map[string]*types.File),
		byID:    make(map[string]*types.File),
		byCHash: make(map[string][]string),
	}
}

var _ types.FileRepository = (*FileRepository)(nil)

func (r *FileRepository) indexLocked(f *types.File) {
	r.byPath[key(f.NSPath, f.Path)] = f
	r.byID[f.ID] = f
	if f.CHash != "" {
		r.byCHash[f.CHash] = append(r.byCHash[f.CHash], f.ID)
	}
}

// Save inserts or replaces a file row, assigning an ID if absent.
func (r *FileRepository) Save(ctx context.Context, f types.File) (types.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(f.NSPath, f.Path)
	if existing, ok := r.byPath[k]; ok && existing.ID != f.ID {
		return types.File{}, errors.New(errors.CodeAlreadyExists, "file already exists at path: "+f.Path)
	}
	if f.ID == "" {
		f.ID = newID()
	}
	cp := f
	r.indexLocked(&cp)
	return cp, nil
}

// SaveBatch saves each file, rolling back nothing on partial failure; the
// caller is expected to wrap batch calls in Atomic for consistency.
func (r *FileRepository) SaveBatch(ctx context.Context, files []types.File) ([]types.File, error) {
	out := make([]types.File, 0, len(files))
	for _, f := range files {
		saved, err := r.Save(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (r *FileRepository) GetByPath(ctx context.Context, nsPath, filePath string) (types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byPath[key(nsPath, filePath)]
	if !ok {
		return types.File{}, errors.New(errors.CodeNotFound, "file not found at path: "+filePath)
	}
	return *f, nil
}

func (r *FileRepository) GetByPathBatch(ctx context.Context, nsPath string, paths []string) ([]types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.File
	for _, p := range paths {
		if f, ok := r.byPath[key(nsPath, p)]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return types.File{}, errors.New(errors.CodeNotFound, "file not found with id: "+id)
	}
	return *f, nil
}

func (r *FileRepository) GetByIDBatch(ctx context.Context, ids []string) ([]types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.File
	for _, id := range ids {
		if f, ok := r.byID[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *FileRepository) GetByCHashBatch(ctx context.Context, chashes []string) ([]types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.File
	for _, c := range chashes {
		for _, id := range r.byCHash[c] {
			if f, ok := r.byID[id]; ok {
				out = append(out, *f)
			}
		}
	}
	return out, nil
}

func (r *FileRepository) ExistsAtPath(ctx context.Context, nsPath, filePath string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[key(nsPath, filePath)]
	return ok, nil
}

func (r *FileRepository) ExistsWithID(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok, nil
}

func (r *FileRepository) IncrSize(ctx context.Context, nsPath string, deltas []types.PathDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range deltas {
		f, ok := r.byPath[key(nsPath, d.Path)]
		if !ok {
			continue
		}
		f.Size += d.Delta
	}
	return nil
}

func (r *FileRepository) IncrSizeBatch(ctx context.Context, nsPath string, paths []string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range paths {
		f, ok := r.byPath[key(nsPath, p)]
		if !ok {
			continue
		}
		f.Size += delta
	}
	return nil
}

func (r *FileRepository) CountByPathPattern(ctx context.Context, nsPath string, pattern *regexp.Regexp) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := strings.ToLower(nsPath) + "\x00"
	count := 0
	for k, f := range r.byPath {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if pattern.MatchString(f.Path) {
			count++
		}
	}
	return count, nil
}

func (r *FileRepository) Delete(ctx context.Context, nsPath, filePath string) (types.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(nsPath, filePath)
	f, ok := r.byPath[k]
	if !ok {
		return types.File{}, errors.New(errors.CodeNotFound, "file not found at path: "+filePath)
	}
	delete(r.byPath, k)
	delete(r.byID, f.ID)
	return *f, nil
}

func (r *FileRepository) DeleteBatch(ctx context.Context, nsPath string, paths []string) ([]types.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.File
	for _, p := range paths {
		k := key(nsPath, p)
		f, ok := r.byPath[k]
		if !ok {
			continue
		}
		delete(r.byPath, k)
		delete(r.byID, f.ID)
		out = append(out, *f)
	}
	return out, nil
}

func (r *FileRepository) DeleteAllWithPrefix(ctx context.Context, nsPath, prefix string) ([]types.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lowerPrefix := strings.ToLower(prefix)
	nsPrefix := strings.ToLower(nsPath) + "\x00"
	var out []types.File
	for k, f := range r.byPath {
		if !strings.HasPrefix(k, nsPrefix) {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(f.Path), lowerPrefix) {
			continue
		}
		delete(r.byPath, k)
		delete(r.byID, f.ID)
		out = append(out, *f)
	}
	return out, nil
}

func (r *FileRepository) DeleteAllWithPrefixBatch(ctx context.Context, targets []types.NSPathRef) ([]types.File, error) {
	var out []types.File
	for _, t := range targets {
		deleted, err := r.DeleteAllWithPrefix(ctx, t.NSPath, t.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, deleted...)
	}
	return out, nil
}

func (r *FileRepository) ReplacePathPrefix(ctx context.Context, from types.NSPathRef, to types.NSPathRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fromPrefix := strings.ToLower(from.Path) + "/"
	nsPrefix := strings.ToLower(from.NSPath) + "\x00"

	var toUpdate []*types.File
	for k, f := range r.byPath {
		if !strings.HasPrefix(k, nsPrefix) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(f.Path)+"/", fromPrefix) {
			toUpdate = append(toUpdate, f)
		}
	}
	for _, f := range toUpdate {
		suffix := f.Path[len(from.Path):]
		newPath := to.Path + suffix
		delete(r.byPath, key(f.NSPath, f.Path))
		f.NSPath = to.NSPath
		f.Path = newPath
		r.byPath[key(f.NSPath, f.Path)] = f
	}
	return nil
}

func (r *FileRepository) Update(ctx context.Context, id string, patch types.FileUpdate) (types.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byID[id]
	if !ok {
		return types.File{}, errors.New(errors.CodeNotFound, "file not found with id: "+id)
	}

	oldKey := key(f.NSPath, f.Path)
	if patch.NSPath != nil {
		f.NSPath = *patch.NSPath
	}
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Path != nil {
		f.Path = *patch.Path
	}
	if patch.CHash != nil {
		f.CHash = *patch.CHash
		r.byCHash[f.CHash] = append(r.byCHash[f.CHash], f.ID)
	}
	if patch.Size != nil {
		f.Size = *patch.Size
	}
	delete(r.byPath, oldKey)
	r.byPath[key(f.NSPath, f.Path)] = f
	return *f, nil
}

func (r *FileRepository) ListFiles(ctx context.Context, nsPath string, included, excluded []string, offset, limit int) ([]types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inSet := toSet(included)
	exSet := toSet(excluded)
	nsPrefix := strings.ToLower(nsPath) + "\x00"

	var matched []types.File
	for k, f := range r.byPath {
		if !strings.HasPrefix(k, nsPrefix) {
			continue
		}
		if len(inSet) > 0 && !inSet[f.MediaType] {
			continue
		}
		if exSet[f.MediaType] {
			continue
		}
		matched = append(matched, *f)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func (r *FileRepository) ListWithPrefix(ctx context.Context, nsPath, prefix string) ([]types.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nsPrefix := strings.ToLower(nsPath) + "\x00"
	lowerPrefix := strings.ToLower(prefix)

	var out []types.File
	for k, f := range r.byPath {
		if !strings.HasPrefix(k, nsPrefix) {
			continue
		}
		if lowerPrefix == "" {
			if strings.Contains(f.Path, "/") {
				continue
			}
			out = append(out, *f)
			continue
		}
		if !strings.HasPrefix(strings.ToLower(f.Path), lowerPrefix) {
			continue
		}
		rest := f.Path[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *FileRepository) SetCHashBatch(ctx context.Context, updates []types.CHashUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range updates {
		f, ok := r.byID[u.FileID]
		if !ok {
			continue
		}
		f.CHash = u.CHash
		r.byCHash[u.CHash] = append(r.byCHash[u.CHash], f.ID)
	}
	return nil
}
