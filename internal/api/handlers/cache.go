package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/varcache"
)

// CacheHandler exposes the ticker risk cache read-only
type CacheHandler struct {
	cache *varcache.Cache
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache *varcache.Cache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// CacheListResponse is the cache population, ascending by VaR
type CacheListResponse struct {
	Backend string                        `json:"backend"`
	Total   int                           `json:"total"`
	Counts  map[contracts.QualityTier]int `json:"counts"`
	Records []varcache.Record             `json:"records"`
}

// List returns the cached tickers, optionally filtered by ?quality=BAD
// GET /api/cache
func (h *CacheHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.cache.Records()

	if q := r.URL.Query().Get("quality"); q != "" {
		tier := contracts.ParseQualityTier(q)
		if tier == contracts.QualityUnknown {
			respondError(w, http.StatusBadRequest, "quality must be GOOD, MID or BAD")
			return
		}
		filtered := make([]varcache.Record, 0, len(records))
		for _, rec := range records {
			if rec.Quality == tier {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	respondJSON(w, http.StatusOK, CacheListResponse{
		Backend: h.cache.Describe(),
		Total:   h.cache.Len(),
		Counts:  h.cache.Counts(),
		Records: records,
	})
}

// Get returns one cached ticker
// GET /api/cache/{symbol}
func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := contracts.NormalizeSymbol(mux.Vars(r)["symbol"])

	rec, ok := h.cache.Lookup(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Symbol not cached: "+symbol)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
