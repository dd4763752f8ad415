package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type SortKey struct {
	Field string
	Desc  bool
}

// ListParams are the listing parameters of GET /api/runs.
type ListParams struct {
	Limit   int
	Offset  int
	Sort    []SortKey
	Filters map[string]string
}

var runSortFields = map[string]bool{"id": true, "resource": true, "profile": true}

func parseListParams(q url.Values) ListParams {
	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n >= 0 && n <= 1000 {
		limit = n
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}

	var keys []SortKey
	for _, p := range strings.Split(q.Get("sort"), ",") {
		p = strings.TrimSpace(p)
		desc := strings.HasPrefix(p, "-")
		p = strings.TrimLeft(p, "+-")
		if runSortFields[p] {
			keys = append(keys, SortKey{Field: p, Desc: desc})
		}
	}
	if len(keys) == 0 {
		// newest first
		keys = []SortKey{{Field: "id", Desc: true}}
	}

	filters := map[string]string{}
	for _, k := range []string{"resource", "profile"} {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			filters[k] = v
		}
	}
	return ListParams{Limit: limit, Offset: offset, Sort: keys, Filters: filters}
}

func runField(r *Run, key string) string {
	switch key {
	case "id":
		return r.ID
	case "resource":
		return r.Resource
	case "profile":
		return r.Profile
	}
	return ""
}

// apply filters, sorts and pages runs.
func (p ListParams) apply(runs []*Run) (page []*Run, total int) {
	var out []*Run
	for _, r := range runs {
		keep := true
		for k, v := range p.Filters {
			if !strings.EqualFold(runField(r, k), v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range p.Sort {
			a, b := runField(out[i], k.Field), runField(out[j], k.Field)
			if a == b {
				continue
			}
			if k.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
	total = len(out)
	if p.Offset >= len(out) {
		return nil, total
	}
	out = out[p.Offset:]
	if p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out, total
}
