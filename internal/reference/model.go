// Package reference loads enum catalogs: YAML files naming an enum and its
// members. Catalog enums are shared by every resource of a run.
package reference

import "sort"

// Catalog is one enum.
type Catalog struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

type Item struct {
	Code  string `yaml:"code"`
	Label string `yaml:"name,omitempty"`
	// Order sorts members; equal orders keep file order.
	Order      int  `yaml:"order,omitempty"`
	Deprecated bool `yaml:"deprecated,omitempty"`
}

// Members are the codes in catalog order. Deprecated codes stay members so
// existing rows remain valid.
func (c Catalog) Members() []string {
	items := append([]Item(nil), c.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Code != "" {
			out = append(out, it.Code)
		}
	}
	return out
}
