package gogin

import (
	"text/template"

	"resforge/internal/artifact"
	"resforge/internal/typereg"
)

var routeFuncs = template.FuncMap{
	"numeric": func(f artifact.BoundField) bool { return f.Type.Tag == typereg.TagNumeric },
	"pkg":     pkgName,
}

var routeBody = artifact.MustTextBody("route", routeSrc, routeFuncs)

const routeSrc = `// Code generated by resforge. DO NOT EDIT.

{{- $id := $.Use "id" }}
{{- $n := .Names }}
{{- $paged := .OptionBool "pagination" }}

package {{ pkg $n }}

import (
	"errors"
	"net/http"
{{- if numeric $id }}
	"strconv"
{{- end }}

	"github.com/gin-gonic/gin"
)

// Handler serves the {{ $n.Human }} endpoints.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Register mounts the routes under /{{ $n.Path }}.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/{{ $n.Path }}")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:{{ $id.Names.Snake }}", h.get)
	g.PUT("/:{{ $id.Names.Snake }}", h.update)
	g.DELETE("/:{{ $id.Names.Snake }}", h.delete)
}

func parseID(c *gin.Context) ({{ $id.Type.Spelling }}, bool) {
{{- if numeric $id }}
	id, err := strconv.ParseInt(c.Param("{{ $id.Names.Snake }}"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid {{ $id.Names.Snake }}"})
		return 0, false
	}
	return {{ $id.Type.Spelling }}(id), true
{{- else }}
	id := c.Param("{{ $id.Names.Snake }}")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing {{ $id.Names.Snake }}"})
		return id, false
	}
	return id, true
{{- end }}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrDuplicate){{ if .OptionBool "versioned" }}, errors.Is(err, ErrConflict){{ end }}:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidReference):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) create(c *gin.Context) {
	var req Create{{ $n.Declaration }}Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.repo.Create(c.Request.Context(), req.Model())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, New{{ $n.Declaration }}Response(m))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, New{{ $n.Declaration }}Response(m))
}

func (h *Handler) list(c *gin.Context) {
{{- if $paged }}
	var q List{{ $n.PluralDeclaration }}Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ms, err := h.repo.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    New{{ $n.Declaration }}ResponseList(ms),
		"page":     max(q.Page, 1),
		"pageSize": q.Limit(),
	})
{{- else }}
	ms, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": New{{ $n.Declaration }}ResponseList(ms)})
{{- end }}
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req Update{{ $n.Declaration }}Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	req.Apply(&m)
	m, err = h.repo.Update(c.Request.Context(), m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, New{{ $n.Declaration }}Response(m))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
`
