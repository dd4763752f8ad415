package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resforge/internal/diag"
	"resforge/internal/dsl"
	"resforge/internal/engine"
	"resforge/internal/reference"
	"resforge/internal/spec"
	"resforge/internal/typereg"
)

type reloadReq struct {
	SpecDir  string `json:"specDir"`
	EnumsDir string `json:"enumsDir"`
}

type lintIssue struct {
	Resource string `json:"resource"`
	diag.Problem
}

// AdminReloadHandler reloads specs and catalogs. The new set only replaces
// the old one when every resource validates.
func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		specDir := strings.TrimSpace(req.SpecDir)
		if specDir == "" {
			specDir = s.opts.SpecDir
		}
		enumsDir := strings.TrimSpace(req.EnumsDir)
		if enumsDir == "" {
			enumsDir = s.opts.EnumsDir
		}

		doc, err := dsl.LoadAll(specDir, s.opts.SpecPattern)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "spec load error", "details": err.Error()})
			return
		}
		catalogs := map[string]reference.Catalog{}
		if enumsDir != "" {
			catalogs, err = reference.LoadCatalogs(enumsDir)
			if errors.Is(err, fs.ErrNotExist) {
				catalogs, err = map[string]reference.Catalog{}, nil
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "catalog load error", "details": err.Error()})
				return
			}
		}

		// lint against a registry built from the new set only
		enums := enumsOf(doc, catalogs)
		reg := s.engine.Registry.Snapshot()
		doc.Register(reg)
		var issues []lintIssue
		for _, r := range doc.Resources {
			res, err := validateWith(s, reg, r, enums)
			if err != nil && res == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			for _, p := range res.Problems.Errors() {
				issues = append(issues, lintIssue{Resource: r.Name, Problem: p})
			}
		}
		if len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    "specs have blocking issues",
				"issues":   issues,
				"specDir":  specDir,
				"enumsDir": enumsDir,
			})
			return
		}

		s.store.Replace(doc, catalogs)
		reference.Register(s.engine.Registry, catalogs)
		doc.Register(s.engine.Registry)
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"specDir":   specDir,
			"enumsDir":  enumsDir,
			"resources": len(doc.Resources),
			"catalogs":  len(catalogs),
		})
	}
}

func enumsOf(doc *dsl.Document, catalogs map[string]reference.Catalog) map[string][]string {
	out := map[string][]string{}
	for name, c := range catalogs {
		out[name] = c.Members()
	}
	for name, members := range doc.Enums {
		out[name] = members
	}
	return out
}

// enums of the current store.
func (s *Server) enums() map[string][]string {
	return enumsOf(s.store.Document(), s.store.Catalogs())
}

func validateWith(s *Server, reg *typereg.Registry, raw spec.Raw, enums map[string][]string) (*engine.Result, error) {
	eng := *s.engine
	eng.Registry = reg
	return eng.Validate(s.opts.Profile, raw, enums)
}
