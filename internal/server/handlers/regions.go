package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/agentstation/worldfeed/internal/server/cache"
	"github.com/agentstation/worldfeed/internal/server/response"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// artifact is a cached rendered file.
type artifact struct {
	data        []byte
	contentType string
}

// HandleListRegions handles GET /api/v1/regions.
func (h *Handlers) HandleListRegions(w http.ResponseWriter, _ *http.Request) {
	statuses, err := h.feed.Status()
	if err != nil {
		h.logger.Error().Err(err).Msg("Reading region status failed")
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, map[string]any{
		"regions": statuses,
		"count":   len(statuses),
	})
}

// HandleGetRegion handles GET /api/v1/regions/{region}.
func (h *Handlers) HandleGetRegion(w http.ResponseWriter, r *http.Request) {
	region, err := h.region(r.PathValue("region"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	statuses, err := h.feed.Status()
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	for _, st := range statuses {
		if st.Region == region {
			response.OK(w, st)
			return
		}
	}
	response.ErrorFromType(w, errors.NewNotFoundError("region", region.String()))
}

// HandleGetArtifact handles GET /api/v1/regions/{region}/artifacts/{name}.
// Artifacts are served as written, not wrapped in the JSON envelope.
func (h *Handlers) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	region, err := h.region(r.PathValue("region"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	name := filepath.Base(r.PathValue("name"))
	key := cache.Key(region.String(), name)

	if cached, ok := h.cache.Get(key); ok {
		a := cached.(artifact)
		w.Header().Set("X-Cache", "HIT")
		response.Raw(w, a.contentType, a.data)
		return
	}

	data, err := h.feed.Artifact(region, name)
	if err != nil {
		if !errors.IsNotFound(err) {
			h.logger.Error().Err(err).Str("region", region.String()).Str("artifact", name).Msg("Reading artifact failed")
		}
		response.ErrorFromType(w, err)
		return
	}
	a := artifact{data: data, contentType: contentType(name)}
	h.cache.Set(key, a)
	w.Header().Set("X-Cache", "MISS")
	response.Raw(w, a.contentType, a.data)
}

// HandleListVersions handles GET /api/v1/regions/{region}/versions.
func (h *Handlers) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	region, err := h.region(r.PathValue("region"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	versions, err := h.feed.Versions(region)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, map[string]any{
		"region":   region,
		"versions": versions,
		"count":    len(versions),
	})
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
