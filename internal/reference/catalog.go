package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"resforge/internal/typereg"
)

// LoadCatalogs reads every *.yaml / *.yml file of dir. A catalog without a
// name is named after its file.
func LoadCatalogs(dir string) (map[string]Catalog, error) {
	result := make(map[string]Catalog)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var c Catalog
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if c.Name == "" {
			c.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		if len(c.Members()) == 0 {
			return nil, fmt.Errorf("%s: catalog %q has no items", path, c.Name)
		}
		if _, dup := result[c.Name]; dup {
			return nil, fmt.Errorf("%s: catalog %q declared twice", path, c.Name)
		}
		result[c.Name] = c
	}
	return result, nil
}

// Register adds every catalog to reg as an enum.
func Register(reg *typereg.Registry, catalogs map[string]Catalog) {
	names := make([]string, 0, len(catalogs))
	for n := range catalogs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		reg.RegisterEnum(n, catalogs[n].Members())
	}
}
