package web

import (
	"encoding/json"
	"net/http"

	"notedrop/internal/cache"
	"notedrop/internal/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := search.Params{
		Keyword:  q.Get("keyword"),
		Category: q.Get("category"),
		Subject:  q.Get("subject"),
		DocType:  q.Get("doc_type"),
		Year:     queryInt(r, "year"),
		Page:     queryInt(r, "page"),
		Size:     queryInt(r, "size"),
		Fuzzy:    q.Get("fuzzy") == "true" || q.Get("fuzzy") == "1",
	}.Normalize()

	key := cache.Key(params)
	if cached, ok := s.cache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.Write(cached)
		return
	}

	result, err := s.index.Search(params)
	if err != nil {
		// The read path never surfaces backend trouble: degrade to the
		// neutral empty shape and let the caller retry later.
		s.logger.Warn("search degraded to empty result", "error", err)
		writeJSON(w, http.StatusOK, search.EmptyResult(params))
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("marshal search result", "error", err)
		writeJSON(w, http.StatusOK, search.EmptyResult(params))
		return
	}
	s.cache.Set(key, body)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.Write(body)
}
