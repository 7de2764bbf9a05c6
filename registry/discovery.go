package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/modsentry/orchestrator/types"
)

// moduleConfigFile is the per-module-directory config file, per §6's
// "Module configuration file (per internal module directory)".
type moduleConfigFile struct {
	Name         string          `yaml:"name"`
	Version      string          `yaml:"version"`
	Description  string          `yaml:"description"`
	Author       string          `yaml:"author"`
	InputFormats []types.FileType `yaml:"input_formats"`
	Active       *bool           `yaml:"active"`
	ImageRef     string          `yaml:"image_ref"`
	Autostart    bool            `yaml:"autostart"`
}

// DiscoverInternal scans dir for subdirectories each containing a "config"
// YAML file, and returns one ModuleDescriptor per subdirectory found. The
// module ID is the subdirectory's base name. Descriptors start with
// container_state=absent; the supervisor brings them up.
func DiscoverInternal(dir string) ([]types.ModuleDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: scan %s: %w", dir, err)
	}

	var out []types.ModuleDescriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		configPath := filepath.Join(dir, entry.Name(), "config")
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("registry: read %s: %w", configPath, err)
		}

		var cfg moduleConfigFile
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("registry: parse %s: %w", configPath, err)
		}

		active := true
		if cfg.Active != nil {
			active = *cfg.Active
		}
		out = append(out, types.ModuleDescriptor{
			ID:             entry.Name(),
			Name:           cfg.Name,
			Version:        cfg.Version,
			Author:         cfg.Author,
			Description:    cfg.Description,
			InputFormats:   cfg.InputFormats,
			Kind:           types.ModuleKindInternal,
			Active:         active,
			Healthy:        false,
			ImageRef:       cfg.ImageRef,
			ContainerState: types.ContainerAbsent,
			Autostart:      cfg.Autostart,
		})
	}
	return out, nil
}
