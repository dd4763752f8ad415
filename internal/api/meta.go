package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"resforge/internal/profile"
	"resforge/internal/typereg"
)

type profileItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Targets     []string `json:"targets"`
	Artifacts   []string `json:"artifacts"`
}

func ProfileListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]profileItem, 0)
		for _, name := range profile.Names() {
			p, err := profile.Lookup(name)
			if err != nil {
				continue
			}
			out = append(out, describeProfile(p))
		}
		c.JSON(http.StatusOK, out)
	}
}

func describeProfile(p *profile.Profile) profileItem {
	it := profileItem{Name: p.Name, Description: p.Description, Targets: p.Targets()}
	for _, t := range p.Templates.Templates() {
		it.Artifacts = append(it.Artifacts, string(t.Kind))
	}
	return it
}

type typeRow struct {
	Kind     string `json:"kind"`
	Spelling string `json:"spelling"`
	Tag      string `json:"tag"`
}

// ProfileTypesHandler lists the type table of every target of a profile.
func ProfileTypesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := profile.Lookup(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		out := map[string][]typeRow{}
		for target, m := range p.Types {
			rows := make([]typeRow, 0, len(m))
			for _, k := range typereg.Kinds {
				ct, ok := m[k]
				if !ok {
					continue
				}
				rows = append(rows, typeRow{Kind: string(k), Spelling: ct.Spelling, Tag: string(ct.Tag)})
			}
			out[target] = rows
		}
		c.JSON(http.StatusOK, gin.H{"profile": describeProfile(p), "types": out})
	}
}

func CatalogListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats := s.store.Catalogs()
		names := make([]string, 0, len(cats))
		for n := range cats {
			names = append(names, n)
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, names)
	}
}

func CatalogHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		cat, ok := s.store.Catalogs()[name]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":    name,
			"items":   cat.Items,
			"members": cat.Members(),
		})
	}
}

type specItem struct {
	Name      string `json:"name"`
	Fields    int    `json:"fields"`
	Relations int    `json:"relations"`
}

func SpecListHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc := s.store.Document()
		out := make([]specItem, 0, len(doc.Resources))
		for _, r := range doc.Resources {
			out = append(out, specItem{Name: r.Name, Fields: len(r.Fields), Relations: len(r.Relations)})
		}
		c.JSON(http.StatusOK, out)
	}
}

// SpecHandler validates a loaded resource against a profile (the server's
// default unless ?profile= is given) and shows what would be generated.
func SpecHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := s.store.ResolveResource(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
			return
		}
		prof := c.DefaultQuery("profile", s.opts.Profile)
		res, err := s.engine.Validate(prof, raw, s.enums())
		if res == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body := gin.H{
			"raw":      raw,
			"valid":    err == nil,
			"problems": res.Problems,
			"derived":  newSpecView(res.Derived),
		}
		if err == nil {
			body["naming"] = res.Naming
			p, _ := profile.Lookup(prof)
			paths := map[string]string{}
			for _, t := range p.Templates.Templates() {
				if t.Applies(res.Derived) {
					paths[string(t.Kind)] = t.Path(res.Naming)
				}
			}
			body["paths"] = paths
		}
		c.JSON(http.StatusOK, body)
	}
}
