package filecore

import (
	"context"
	"strings"

	"github.com/shelfcloud/core/internal/db"
	shelferrors "github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/path"
	"github.com/shelfcloud/core/pkg/types"
)

// Move relocates a file or folder, possibly across namespaces, reconciling
// both the object store and the ancestor size aggregates on both ends.
func (c *Core) Move(ctx context.Context, atNS, atPath, toNS, toPath string) (types.File, error) {
	var result types.File
	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		atP := path.New(atPath)
		toP := path.New(toPath)
		sameNS := strings.EqualFold(atNS, toNS)
		caseOnlyRename := sameNS && atP.Equal(toP)

		if sameNS && !caseOnlyRename && toP.IsRelativeTo(atP) {
			return shelferrors.New(shelferrors.CodeMalformedPath, "Can't move to itself.")
		}

		src, err := c.files.GetByPath(ctx, atNS, atPath)
		if err != nil {
			return err
		}

		parentOfDst := toP.Parent()
		parentFile, err := c.files.GetByPath(ctx, toNS, parentOfDst.String())
		if err != nil {
			if shelferrors.As(err, shelferrors.CodeNotFound) {
				return shelferrors.New(shelferrors.CodeMissingParent, "destination parent does not exist: "+parentOfDst.String())
			}
			return err
		}
		if !parentFile.IsFolder() {
			return shelferrors.New(shelferrors.CodeNotADirectory, "destination parent is not a folder: "+parentFile.Path)
		}

		destExists, err := c.files.ExistsAtPath(ctx, toNS, toP.String())
		if err != nil {
			return err
		}
		if destExists && !caseOnlyRename {
			return shelferrors.New(shelferrors.CodeAlreadyExists, "destination already exists: "+toP.String())
		}

		finalPath := parentFile.PathValue().Join(toP.Name())

		if src.IsFolder() {
			if err := c.objects.MoveDir(ctx, atNS, atPath, toNS, finalPath.String()); err != nil {
				return err
			}
		} else if err := c.objects.Move(ctx, atNS, atPath, toNS, finalPath.String()); err != nil {
			return err
		}

		return db.Atomic(ctx, func(ctx context.Context) error {
			nsPatch := toNS
			namePatch := finalPath.Name()
			pathPatch := finalPath.String()
			updated, err := c.files.Update(ctx, src.ID, types.FileUpdate{NSPath: &nsPatch, Name: &namePatch, Path: &pathPatch})
			if err != nil {
				return err
			}
			result = updated

			if src.IsFolder() {
				if err := c.files.ReplacePathPrefix(ctx,
					types.NSPathRef{NSPath: atNS, Path: atPath},
					types.NSPathRef{NSPath: toNS, Path: finalPath.String()},
				); err != nil {
					return err
				}
			}

			left := ancestorRefs(atNS, path.New(atPath).Parents())
			joined := ancestorRefs(toNS, finalPath.Parents())
			onlyLeft, onlyJoined := diffRefs(left, joined)

			if err := applyRefDelta(ctx, c.files, onlyLeft, -src.Size); err != nil {
				return err
			}
			return applyRefDelta(ctx, c.files, onlyJoined, src.Size)
		})
	})
	if err != nil {
		return types.File{}, err
	}
	return result, nil
}
