package importer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAssets_CollisionFree(t *testing.T) {
	run := scanned(t, paths("a/pic.png", "b/pic.png", "c/pic.png")...)

	names := map[string]string{}
	for _, a := range run.Assets() {
		names[a.OriginalPath] = a.StoredName
	}
	require.Len(t, names, 3)
	assert.NotEqual(t, names["a/pic.png"], names["b/pic.png"])
	assert.NotEqual(t, names["b/pic.png"], names["c/pic.png"])
	assert.Equal(t, "pic_1.png", names["a/pic.png"])
}

func TestResolveAssets_SanitizesNames(t *testing.T) {
	run := scanned(t, paths("files/Mi foto (1).JPG", "files/.png", "files/résumé.pdf")...)

	name, ok := run.AssetName("files/Mi foto (1).JPG")
	require.True(t, ok)
	assert.Equal(t, "Mi_foto__1__1.JPG", name)

	name, _ = run.AssetName("files/résumé.pdf")
	assert.Regexp(t, regexp.MustCompile(`^r_sum__\d+\.pdf$`), name)
}

// repeatTokens returns the same token until forced to advance.
type repeatTokens struct{ calls int }

func (r *repeatTokens) Token() string {
	r.calls++
	if r.calls <= 2 {
		return "same"
	}
	return "next"
}

func TestResolveAssets_RetriesOnTokenClash(t *testing.T) {
	run := NewRun(seqIDs(), &repeatTokens{})
	ResolveAssets(run, paths("a/x.png", "b/x.png"))

	a, _ := run.AssetName("a/x.png")
	b, _ := run.AssetName("b/x.png")
	assert.Equal(t, "x_same.png", a)
	assert.Equal(t, "x_next.png", b)
}

func TestRandomTokens_Distinct(t *testing.T) {
	var tok RandomTokens
	seen := map[string]bool{}
	for range 100 {
		s := tok.Token()
		assert.Len(t, s, 12)
		assert.False(t, seen[s])
		seen[s] = true
	}
}
