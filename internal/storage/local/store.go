// Package local implements types.ObjectStore on the host filesystem, for
// development and for namespaces that opt out of S3-backed storage.
package local

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// Store roots every namespace under one base directory on disk.
type Store struct {
	baseDir string
}

// New creates a Store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) resolve(nsPath, itemPath string) string {
	clean := filepath.Join(s.baseDir, filepath.FromSlash(strings.Trim(nsPath, "/")), filepath.FromSlash(strings.TrimPrefix(itemPath, "/")))
	return clean
}

func wrapErr(err error, operation, path string) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return shelferrors.New(shelferrors.CodeNotFound, "object not found: "+path).WithOperation(operation).WithCause(err)
	}
	return shelferrors.New(shelferrors.CodeInternalError, operation+" failed for "+path).WithOperation(operation).WithCause(err)
}

// Save writes content to nsPath/filePath, creating parent directories.
func (s *Store) Save(ctx context.Context, nsPath, filePath string, content io.Reader) (types.SaveResult, error) {
	full := s.resolve(nsPath, filePath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return types.SaveResult{}, wrapErr(err, "Save", filePath)
	}
	f, err := os.Create(full)
	if err != nil {
		return types.SaveResult{}, wrapErr(err, "Save", filePath)
	}
	defer f.Close()

	n, err := io.Copy(f, content)
	if err != nil {
		return types.SaveResult{}, wrapErr(err, "Save", filePath)
	}
	return types.SaveResult{Size: n}, nil
}

// Download opens nsPath/filePath for reading.
func (s *Store) Download(ctx context.Context, nsPath, filePath string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(nsPath, filePath))
	if err != nil {
		return nil, wrapErr(err, "Download", filePath)
	}
	return f, nil
}

// DownloadDir streams a zip archive of everything under nsPath/dirPath.
func (s *Store) DownloadDir(ctx context.Context, nsPath, dirPath string) (io.ReadCloser, error) {
	root := s.resolve(nsPath, dirPath)
	pr, pw := io.Pipe()

	go func() {
		zw := zip.NewWriter(pw)
		err := filepath.Walk(root, func(p string, info os.FileInfo, werr error) error {
			if werr != nil {
				return werr
			}
			if info.IsDir() {
				return nil
			}
			rel, rerr := filepath.Rel(root, p)
			if rerr != nil {
				return rerr
			}
			w, cerr := zw.Create(filepath.ToSlash(rel))
			if cerr != nil {
				return cerr
			}
			f, oerr := os.Open(p)
			if oerr != nil {
				return oerr
			}
			defer f.Close()
			_, err := io.Copy(w, f)
			return err
		})
		if err == nil {
			err = zw.Close()
		} else {
			zw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

// Move renames a single file, creating the destination's parent directory.
func (s *Store) Move(ctx context.Context, fromNS, fromPath, toNS, toPath string) error {
	dst := s.resolve(toNS, toPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return wrapErr(err, "Move", fromPath)
	}
	if err := os.Rename(s.resolve(fromNS, fromPath), dst); err != nil {
		return wrapErr(err, "Move", fromPath)
	}
	return nil
}

// MoveDir renames a whole directory subtree.
func (s *Store) MoveDir(ctx context.Context, fromNS, fromPath, toNS, toPath string) error {
	dst := s.resolve(toNS, toPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return wrapErr(err, "MoveDir", fromPath)
	}
	if err := os.Rename(s.resolve(fromNS, fromPath), dst); err != nil {
		return wrapErr(err, "MoveDir", fromPath)
	}
	return nil
}

// Delete removes a single file.
func (s *Store) Delete(ctx context.Context, nsPath, filePath string) error {
	if err := os.Remove(s.resolve(nsPath, filePath)); err != nil && !os.IsNotExist(err) {
		return wrapErr(err, "Delete", filePath)
	}
	return nil
}

// DeleteDir removes a directory subtree.
func (s *Store) DeleteDir(ctx context.Context, nsPath, dirPath string) error {
	if err := os.RemoveAll(s.resolve(nsPath, dirPath)); err != nil {
		return wrapErr(err, "DeleteDir", dirPath)
	}
	return nil
}

// EmptyDir removes a directory's contents but keeps the directory itself.
func (s *Store) EmptyDir(ctx context.Context, nsPath, dirPath string) error {
	full := s.resolve(nsPath, dirPath)
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wrapErr(err, "EmptyDir", dirPath)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(full, e.Name())); err != nil {
			return wrapErr(err, "EmptyDir", dirPath)
		}
	}
	return nil
}

// MakeDirs creates a directory and any missing parents.
func (s *Store) MakeDirs(ctx context.Context, nsPath, dirPath string) error {
	if err := os.MkdirAll(s.resolve(nsPath, dirPath), 0o755); err != nil {
		return wrapErr(err, "MakeDirs", dirPath)
	}
	return nil
}

// Exists reports whether a file or directory exists at nsPath/filePath.
func (s *Store) Exists(ctx context.Context, nsPath, filePath string) (bool, error) {
	_, err := os.Stat(s.resolve(nsPath, filePath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, wrapErr(err, "Exists", filePath)
}

type dirIterator struct {
	entries []types.DirEntry
	idx     int
}

func (it *dirIterator) Next() bool {
	if it.idx >= len(it.entries) {
		return false
	}
	it.idx++
	return true
}
func (it *dirIterator) Entry() types.DirEntry { return it.entries[it.idx-1] }
func (it *dirIterator) Err() error            { return nil }
func (it *dirIterator) Close() error          { return nil }

// IterDir lists the immediate children of nsPath/dirPath in name order.
func (s *Store) IterDir(ctx context.Context, nsPath, dirPath string) (types.DirIterator, error) {
	full := s.resolve(nsPath, dirPath)
	raw, err := os.ReadDir(full)
	if err != nil {
		return nil, wrapErr(err, "IterDir", dirPath)
	}

	entries := make([]types.DirEntry, 0, len(raw))
	for _, e := range raw {
		info, ierr := e.Info()
		if ierr != nil {
			return nil, wrapErr(ierr, "IterDir", dirPath)
		}
		entries = append(entries, types.DirEntry{
			Name:    e.Name(),
			Path:    filepath.Join(dirPath, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return &dirIterator{entries: entries}, nil
}
