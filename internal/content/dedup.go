package content

import (
	"context"

	"github.com/shelfcloud/core/pkg/dhash"
	"github.com/shelfcloud/core/pkg/types"
)

// Dedup finds near-duplicate files by perceptual hash.
type Dedup struct {
	fingerprints types.FingerprintRepository
}

// NewDedup builds a Dedup service.
func NewDedup(fingerprints types.FingerprintRepository) *Dedup {
	return &Dedup{fingerprints: fingerprints}
}

// FindInFolder groups every fingerprint under nsPath/path (including
// sub-folders) into equivalence classes of near-duplicates: two
// fingerprints land in the same group if there's a path of pairwise
// Hamming distances ≤ maxDistance connecting them, not just a single
// direct match.
func (d *Dedup) FindInFolder(ctx context.Context, nsPath, path string, maxDistance int) ([][]types.Fingerprint, error) {
	prefix := ""
	if path != "." && path != "" {
		prefix = path + "/"
	}

	adjacency, err := d.fingerprints.IntersectAllWithPrefix(ctx, nsPath, prefix)
	if err != nil {
		return nil, err
	}
	if len(adjacency) == 0 {
		return nil, nil
	}

	values := make(map[string]uint64, len(adjacency))
	for fileID, dupes := range adjacency {
		if _, ok := values[fileID]; !ok {
			fp, err := d.fingerprints.GetByFileID(ctx, fileID)
			if err != nil {
				continue
			}
			values[fileID] = fp.Value
		}
		for _, other := range dupes {
			if _, ok := values[other]; !ok {
				fp, err := d.fingerprints.GetByFileID(ctx, other)
				if err != nil {
					continue
				}
				values[other] = fp.Value
			}
		}
	}

	return group(adjacency, values, maxDistance), nil
}

// group re-derives an adjacency list filtered to real Hamming distance ≤
// maxDistance, then connected-component traverses it into equivalence
// groups. Exposed as a pure function over plain maps so it is testable
// against a literal seed scenario without a repository fixture.
func group(candidates map[string][]string, values map[string]uint64, maxDistance int) [][]types.Fingerprint {
	matches := make(map[string][]string)
	seen := make(map[[2]string]bool)

	for fileID, dupes := range candidates {
		for _, other := range dupes {
			key := [2]string{fileID, other}
			if seen[key] {
				continue
			}
			seen[[2]string{other, fileID}] = true

			a, aok := values[fileID]
			b, bok := values[other]
			if !aok || !bok {
				continue
			}
			if dhash.Distance(a, b) <= maxDistance {
				matches[fileID] = append(matches[fileID], other)
				matches[other] = append(matches[other], fileID)
			}
		}
	}

	visited := make(map[string]bool)
	var groups [][]types.Fingerprint
	for node := range matches {
		if visited[node] {
			continue
		}
		groups = append(groups, traverse(matches, values, node, visited))
	}
	return groups
}

func traverse(graph map[string][]string, values map[string]uint64, node string, visited map[string]bool) []types.Fingerprint {
	if visited[node] {
		return nil
	}
	visited[node] = true
	nodes := []types.Fingerprint{{FileID: node, Value: values[node]}}
	for _, adjacent := range graph[node] {
		nodes = append(nodes, traverse(graph, values, adjacent, visited)...)
	}
	return nodes
}
