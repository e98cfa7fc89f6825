// Package registry discovers local GGUF model files so they can be registered
// as scheduler slots.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

var quantPattern = regexp.MustCompile(`(?i)[-_.](q\d+_[a-z0-9_]+|q\d+|f16|f32|bf16)$`)

// LoadDir scans a directory for *.gguf files.
// ID is the full filename; Path is absolute; SizeMB is estimated from the file size.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".gguf") {
			continue
		}
		p := filepath.Join(abs, e.Name())
		size, err := fsutil.SizeMB(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		name, quant := parseName(e.Name())
		models = append(models, types.Model{ID: e.Name(), Name: name, Path: p, Quant: quant, SizeMB: size})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// parseName splits "qwen2.5-7b-q4_k_m.gguf" into ("qwen2.5-7b", "Q4_K_M").
func parseName(file string) (string, string) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	loc := quantPattern.FindStringSubmatchIndex(base)
	if loc == nil {
		return base, ""
	}
	return base[:loc[0]], strings.ToUpper(base[loc[2]:loc[3]])
}

// Find returns the model whose ID or Name matches ref.
func Find(models []types.Model, ref string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == ref || m.Name == ref {
			return m, true
		}
	}
	return types.Model{}, false
}
