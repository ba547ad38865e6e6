package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNormalizes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                ".",
		".":                ".",
		"a//b":             "a/b",
		"./a/./b/":         "a/b",
		"a/b/../c":         "a/c",
		"../a":             "a",
		"a/../../b":        "b",
	}
	for in, want := range cases {
		assert.Equal(t, want, New(in).String(), "New(%q)", in)
	}
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.True(t, New("A/b/C.TXT").Equal(New("a/B/c.txt")))
	assert.False(t, New("a/b").Equal(New("a/bc")))
}

func TestNameAndParent(t *testing.T) {
	t.Parallel()

	p := New("a/b/f.txt")
	assert.Equal(t, "f.txt", p.Name())
	assert.Equal(t, "a/b", p.Parent().String())
	assert.Equal(t, "", Root.Name())
	assert.True(t, Root.Parent().IsRoot())
}

func TestParents(t *testing.T) {
	t.Parallel()

	got := New("a/b/f.txt").Parents()
	want := []string{"a/b", "a", "."}
	for i, p := range got {
		assert.Equal(t, want[i], p.String())
	}
	assert.Len(t, got, 3)
	assert.Empty(t, Root.Parents())
}

func TestIsRelativeTo(t *testing.T) {
	t.Parallel()

	assert.True(t, New("a/b/c").IsRelativeTo(New("a/b")))
	assert.True(t, New("a/b").IsRelativeTo(New("a/b")))
	assert.True(t, New("a/b").IsRelativeTo(Root))
	assert.False(t, New("ab/c").IsRelativeTo(New("a")))
}

func TestWithRestoredCasing(t *testing.T) {
	t.Parallel()

	child := New("A/B/f.txt")
	parent := New("a/B")
	assert.Equal(t, "a/B/f.txt", child.WithRestoredCasing(parent).String())

	// not a descendant: unchanged
	assert.Equal(t, child.String(), child.WithRestoredCasing(New("x")).String())
}

func TestSuffixAndStem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, stem, suffix string
	}{
		{"archive.tar.gz", "archive", ".tar.gz"},
		{"f.txt", "f", ".txt"},
		{"noext", "noext", ""},
		{".bashrc", ".bashrc", ""},
		{"f.tar", "f", ".tar"},
	}
	for _, tc := range cases {
		p := New("a/" + tc.name)
		assert.Equal(t, tc.suffix, p.Suffix(), "suffix(%s)", tc.name)
		assert.Equal(t, tc.stem, p.Stem(), "stem(%s)", tc.name)
	}
}

func TestWithStem(t *testing.T) {
	t.Parallel()

	p := New("a/archive.tar.gz")
	assert.Equal(t, "a/backup.tar.gz", p.WithStem("backup").String())
}

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a/b", Root.Join("a/b").String())
	assert.Equal(t, "a/b/c", New("a/b").Join("c").String())
}
