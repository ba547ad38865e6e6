package db

import (
	"context"
	"strings"
	"sync"

	"github.com/shelfcloud/core/pkg/dhash"
	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// FingerprintRepository is an in-memory types.FingerprintRepository. Each
// of a fingerprint's four 16-bit parts is indexed separately so
// IntersectAllWithPrefix can answer "who shares at least one part with me"
// without a full scan.
type FingerprintRepository struct {
	mu        sync.RWMutex
	byFileID  map[string]types.Fingerprint
	fileNS    map[string]string // fileID -> nsPath, set by the caller via Index
	filePath  map[string]string // fileID -> path, set by the caller via Index
	byPart    [4]map[uint16][]string
}

// NewFingerprintRepository returns an empty repository.
func NewFingerprintRepository() *FingerprintRepository {
	r := &FingerprintRepository{
		byFileID: make(map[string]types.Fingerprint),
		fileNS:   make(map[string]string),
		filePath: make(map[string]string),
	}
	for i := range r.byPart {
		r.byPart[i] = make(map[uint16][]string)
	}
	return r
}

var _ types.FingerprintRepository = (*FingerprintRepository)(nil)

// Index records the (nsPath, path) a file ID corresponds to, so
// IntersectAllWithPrefix can filter its adjacency results to one folder.
// The content pipeline calls this whenever it loads the File row it is
// fingerprinting, since spec's Fingerprint row itself carries no path.
func (r *FingerprintRepository) Index(fileID, nsPath, filePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fileNS[fileID] = nsPath
	r.filePath[fileID] = filePath
}

func (r *FingerprintRepository) Save(ctx context.Context, fp types.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexLocked(fp)
	return nil
}

func (r *FingerprintRepository) SaveBatch(ctx context.Context, fps []types.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fp := range fps {
		r.indexLocked(fp)
	}
	return nil
}

func (r *FingerprintRepository) indexLocked(fp types.Fingerprint) {
	if old, ok := r.byFileID[fp.FileID]; ok {
		r.removePartsLocked(old)
	}
	r.byFileID[fp.FileID] = fp
	parts := dhash.Split(fp.Value)
	for i, part := range parts {
		r.byPart[i][part] = append(r.byPart[i][part], fp.FileID)
	}
}

func (r *FingerprintRepository) removePartsLocked(fp types.Fingerprint) {
	parts := dhash.Split(fp.Value)
	for i, part := range parts {
		r.byPart[i][part] = removeID(r.byPart[i][part], fp.FileID)
	}
}

func (r *FingerprintRepository) GetByFileID(ctx context.Context, fileID string) (types.Fingerprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fp, ok := r.byFileID[fileID]
	if !ok {
		return types.Fingerprint{}, errors.New(errors.CodeNotFound, "no fingerprint for file: "+fileID)
	}
	return fp, nil
}

// IntersectAllWithPrefix returns, for every fingerprinted file under
// prefix, the other file IDs under the same prefix sharing at least one
// 16-bit part. This is the adjacency list FindInFolder groups from.
func (r *FingerprintRepository) IntersectAllWithPrefix(ctx context.Context, nsPath, prefix string) (map[string][]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inScope := make(map[string]bool)
	for fileID, ns := range r.fileNS {
		if !strings.EqualFold(ns, nsPath) {
			continue
		}
		p := r.filePath[fileID]
		if prefix != "" && !strings.HasPrefix(strings.ToLower(p)+"/", strings.ToLower(strings.TrimSuffix(prefix, "/"))+"/") && !strings.EqualFold(p, strings.TrimSuffix(prefix, "/")) {
			continue
		}
		if _, ok := r.byFileID[fileID]; ok {
			inScope[fileID] = true
		}
	}

	adjacency := make(map[string][]string)
	for fileID := range inScope {
		fp := r.byFileID[fileID]
		seen := make(map[string]bool)
		parts := dhash.Split(fp.Value)
		for i, part := range parts {
			for _, other := range r.byPart[i][part] {
				if other == fileID || !inScope[other] || seen[other] {
					continue
				}
				seen[other] = true
				adjacency[fileID] = append(adjacency[fileID], other)
			}
		}
	}
	return adjacency, nil
}
