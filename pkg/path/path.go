// Package path implements a case-insensitive path value type: segments
// are normalized at construction, but equality, ordering and hashing
// compare the case-folded form while the original casing is preserved
// for display and storage.
package path

import "strings"

// Path is an immutable, normalized, "/"-separated sequence of segments.
// The zero value is not valid; use New or Root.
type Path struct {
	raw string
}

// Root is the namespace's implicit "." folder.
var Root = Path{raw: "."}

// New normalizes s: redundant slashes and "." segments are dropped, and
// ".." pops the previous segment (a leading ".." with nothing to pop is
// simply dropped, matching plain lexical resolution rather than
// filesystem-aware resolution).
func New(s string) Path {
	segments := strings.Split(s, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return Root
	}
	return Path{raw: strings.Join(out, "/")}
}

// String returns the path with its original casing.
func (p Path) String() string { return p.raw }

// IsRoot reports whether p is the namespace root.
func (p Path) IsRoot() bool { return p.raw == "." }

func (p Path) casefold() string { return strings.ToLower(p.raw) }

// Key returns the case-folded form suitable as a map key for
// case-insensitive uniqueness and lookups (FileRepository's unique-path
// constraint is expressed this way in the in-memory store).
func (p Path) Key() string { return p.casefold() }

// Equal is case-insensitive full-string comparison.
func (p Path) Equal(other Path) bool { return p.casefold() == other.casefold() }

// Less orders paths case-insensitively, by their case-folded form.
func (p Path) Less(other Path) bool { return p.casefold() < other.casefold() }

// Name is the final segment; the root's name is the empty string.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	if idx := strings.LastIndexByte(p.raw, '/'); idx >= 0 {
		return p.raw[idx+1:]
	}
	return p.raw
}

// Parent is the folder directly containing p. The root is its own parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	idx := strings.LastIndexByte(p.raw, '/')
	if idx < 0 {
		return Root
	}
	return Path{raw: p.raw[:idx]}
}

// Parents lists every ancestor from the immediate parent down to (and
// including) the root. FileCore uses this to fan out IncrSizeBatch calls
// when a file is created, moved or deleted.
func (p Path) Parents() []Path {
	if p.IsRoot() {
		return nil
	}
	var out []Path
	cur := p
	for {
		parent := cur.Parent()
		out = append(out, parent)
		if parent.IsRoot() {
			return out
		}
		cur = parent
	}
}

// Join appends a raw (already-normalized-free) child segment string,
// re-normalizing the result.
func (p Path) Join(child string) Path {
	if p.IsRoot() {
		return New(child)
	}
	return New(p.raw + "/" + child)
}

// IsRelativeTo reports whether p is other or a descendant of other,
// compared case-insensitively and aligned on segment boundaries (so
// "ab/c" is not relative to "a").
func (p Path) IsRelativeTo(other Path) bool {
	if other.IsRoot() {
		return true
	}
	pc, oc := p.casefold(), other.casefold()
	return pc == oc || strings.HasPrefix(pc, oc+"/")
}

// WithRestoredCasing returns p with its leading prefix, when p.IsRelativeTo
// other, replaced by other's original casing. Used when creating a child
// under a folder whose stored casing differs from the request's casing.
func (p Path) WithRestoredCasing(other Path) Path {
	if !p.IsRelativeTo(other) || other.IsRoot() {
		return p
	}
	if p.casefold() == other.casefold() {
		return other
	}
	return Path{raw: other.raw + p.raw[len(other.raw):]}
}

// compoundSuffixes are well-known compression encodings that, when they
// are a file's final extension, fold one more extension level into Suffix
// (so "archive.tar.gz" has suffix ".tar.gz", not just ".gz").
var compoundSuffixes = map[string]bool{
	".gz":  true,
	".bz2": true,
	".xz":  true,
	".z":   true,
	".br":  true,
}

func splitExt(name string) (stem, suffix string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// Suffix is the file extension, recognizing compound suffixes whose final
// extension is a well-known compression encoding.
func (p Path) Suffix() string {
	name := p.Name()
	stem, suffix := splitExt(name)
	if suffix == "" || !compoundSuffixes[strings.ToLower(suffix)] {
		return suffix
	}
	if _, inner := splitExt(stem); inner != "" {
		return inner + suffix
	}
	return suffix
}

// Stem is Name with Suffix removed.
func (p Path) Stem() string {
	name := p.Name()
	suffix := p.Suffix()
	if suffix == "" {
		return name
	}
	return name[:len(name)-len(suffix)]
}

// WithStem replaces the stem, keeping the recognized suffix.
func (p Path) WithStem(stem string) Path {
	return p.Parent().Join(stem + p.Suffix())
}
