package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resforge/internal/emit"
	"resforge/internal/engine"
	"resforge/internal/spec"
)

// specRequest names the resource to work on: an inline spec or one loaded
// from the spec directory.
type specRequest struct {
	Profile  string              `json:"profile"`
	Resource string              `json:"resource"`
	Spec     *spec.Raw           `json:"spec"`
	Enums    map[string][]string `json:"enums"`
}

type generateRequest struct {
	specRequest
	// Write emits into the server's output directory; otherwise the run is
	// a preview.
	Write          bool  `json:"write"`
	Force          bool  `json:"force"`
	Strict         *bool `json:"strict"`
	IncludeContent *bool `json:"includeContent"`
}

func (s *Server) resolve(c *gin.Context, req specRequest) (spec.Raw, string, map[string][]string, bool) {
	profile := strings.TrimSpace(req.Profile)
	if profile == "" {
		profile = s.opts.Profile
	}
	enums := s.enums()
	for k, v := range req.Enums {
		enums[k] = v
	}
	if req.Spec != nil {
		return *req.Spec, profile, enums, true
	}
	if req.Resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either spec or resource is required"})
		return spec.Raw{}, "", nil, false
	}
	raw, ok := s.store.ResolveResource(req.Resource)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found", "resource": req.Resource})
		return spec.Raw{}, "", nil, false
	}
	return raw, profile, enums, true
}

func ValidateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req specRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
			return
		}
		raw, profile, enums, ok := s.resolve(c, req)
		if !ok {
			return
		}
		res, err := s.engine.Validate(profile, raw, enums)
		if res == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := http.StatusOK
		if err != nil {
			status = http.StatusUnprocessableEntity
		}
		body := gin.H{
			"valid":    err == nil,
			"problems": res.Problems,
			"original": newSpecView(res.Original),
			"derived":  newSpecView(res.Derived),
		}
		if err == nil {
			body["naming"] = res.Naming
		}
		c.JSON(status, body)
	}
}

func GenerateHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
			return
		}
		raw, profile, enums, ok := s.resolve(c, req.specRequest)
		if !ok {
			return
		}
		strict := s.opts.Strict
		if req.Strict != nil {
			strict = *req.Strict
		}
		withContent := !req.Write
		if req.IncludeContent != nil {
			withContent = *req.IncludeContent
		}

		start := time.Now()
		res, err := s.engine.Generate(c.Request.Context(), engine.Request{
			Raw:     raw,
			Profile: profile,
			OutDir:  s.opts.OutDir,
			Force:   req.Force,
			DryRun:  !req.Write,
			Strict:  strict,
			RunID:   emit.NewRunID(start),
			Enums:   enums,
		})
		outcome := "ok"
		status := http.StatusOK
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrInvalidSpec):
			outcome, status = "invalid", http.StatusUnprocessableEntity
		case errors.Is(err, engine.ErrInconsistent):
			outcome, status = "inconsistent", http.StatusConflict
		default:
			outcome = "error"
			s.metrics.observe(profile, outcome, res, time.Since(start))
			if res == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			s.log.Error("generation failed", zap.String("run", res.RunID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "runId": res.RunID})
			return
		}
		s.metrics.observe(profile, outcome, res, time.Since(start))

		view := newRunView(profile, !req.Write, withContent, res)
		if view.Resource == "" {
			view.Resource = raw.Name
		}
		s.store.Put(&Run{ID: res.RunID, Resource: view.Resource, Profile: profile, Result: res, View: view})
		c.JSON(status, view)
	}
}

func ListRunsHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := parseListParams(c.Request.URL.Query())
		page, total := p.apply(s.store.Runs())
		items := make([]gin.H, 0, len(page))
		for _, r := range page {
			items = append(items, gin.H{
				"runId":    r.ID,
				"resource": r.Resource,
				"profile":  r.Profile,
				"dryRun":   r.View.DryRun,
				"errors":   len(r.View.Problems.Errors()),
				"warnings": len(r.View.Problems.Warnings()),
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": p.Limit, "offset": p.Offset})
	}
}

func lookupRun(s *Server, c *gin.Context) (*Run, bool) {
	r, ok, valid := s.store.Get(c.Param("id"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return nil, false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return nil, false
	}
	return r, true
}

func GetRunHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r, ok := lookupRun(s, c); ok {
			c.JSON(http.StatusOK, r.View)
		}
	}
}

// ArtifactContentHandler returns one rendered artifact as plain text.
func ArtifactContentHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := lookupRun(s, c)
		if !ok {
			return
		}
		kind := c.Param("kind")
		for _, a := range r.Result.Artifacts {
			if string(a.Kind) != kind {
				continue
			}
			if a.Failed {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "artifact failed to render", "kind": kind})
				return
			}
			c.Header("X-Artifact-Path", a.Path)
			c.String(http.StatusOK, a.Content)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found", "kind": kind})
	}
}
