package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"unref/internal/errors"
)

// Manifest describes a workspace of several indexed projects.
//
//	name = "shop"
//
//	[[project]]
//	name  = "api"
//	root  = "src/api"
//	index = "src/api/index.scip"
type Manifest struct {
	Name     string            `toml:"name"`
	Projects []ManifestProject `toml:"project"`
}

// ManifestProject is one project of a workspace. Root and Index are
// relative to the manifest's directory.
type ManifestProject struct {
	Name  string `toml:"name"`
	Root  string `toml:"root"`
	Index string `toml:"index"`
}

// LoadManifest reads and validates a workspace manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, manifestError(path, "could not be decoded", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, manifestError(path, "has unknown keys: "+strings.Join(keys, ", "), nil)
	}
	if err := m.Validate(); err != nil {
		return nil, manifestError(path, "is invalid", err)
	}
	return &m, nil
}

// Validate checks that every project is complete and uniquely named.
func (m *Manifest) Validate() error {
	if len(m.Projects) == 0 {
		return fmt.Errorf("no [[project]] entries")
	}
	seen := make(map[string]bool, len(m.Projects))
	for i, p := range m.Projects {
		if p.Name == "" {
			return fmt.Errorf("project %d has no name", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Index == "" {
			return fmt.Errorf("project %q has no index", p.Name)
		}
	}
	return nil
}

// resolve returns the project's root and index as paths joined to dir.
func (p ManifestProject) resolve(dir string) (root, index string) {
	root = p.Root
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	index = p.Index
	if !filepath.IsAbs(index) {
		index = filepath.Join(dir, index)
	}
	return root, index
}

func manifestError(path, what string, cause error) error {
	return errors.NewUnrefError(
		errors.ManifestInvalid,
		fmt.Sprintf("Workspace manifest %s %s", path, what),
		cause,
		errors.GetSuggestedFixes(errors.ManifestInvalid),
	)
}
