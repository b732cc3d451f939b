package filter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" node_modules", ".git ", "", "   ", "temp"})

	assert.Equal(t, []string{"node_modules", ".git", "temp"}, got)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}

func TestInclude(t *testing.T) {
	root := filepath.Join("/srv", "data")

	tests := []struct {
		name      string
		candidate string
		patterns  []string
		want      bool
	}{
		{"root is always included", root, []string{"data", "srv"}, true},
		{"no patterns", filepath.Join(root, "a.txt"), nil, true},
		{"excluded directory", filepath.Join(root, "node_modules"), []string{"node_modules"}, false},
		{"file under excluded directory", filepath.Join(root, "app", "node_modules", "x.js"), []string{"node_modules"}, false},
		{"substring of a file name", filepath.Join(root, "mytemp.log"), []string{"temp"}, false},
		{"case sensitive", filepath.Join(root, "Temp", "a"), []string{"temp"}, true},
		{"no glob semantics", filepath.Join(root, "a.log"), []string{"*.log"}, true},
		{"pattern matching only the root path is ignored", filepath.Join(root, "a.txt"), []string{"srv"}, true},
		{"patterns are trimmed", filepath.Join(root, ".git", "HEAD"), []string{"  .git  "}, false},
		{"empty patterns are dropped", filepath.Join(root, "a.txt"), []string{"", "  "}, true},
		{"any pattern excludes", filepath.Join(root, "b", "cache"), []string{"zzz", "cache"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Include(root, tt.candidate, tt.patterns))
		})
	}
}

func TestFilter_Patterns(t *testing.T) {
	f := New("/src", []string{" a ", ""})

	assert.Equal(t, []string{"a"}, f.Patterns())
}
