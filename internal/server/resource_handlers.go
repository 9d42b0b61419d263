package server

import (
	"encoding/json"
	"net/http"

	"dailybrief/internal/core"
)

// handleListTopics handles GET /api/topics. Pass ?enabled=true to restrict
// to enabled topics.
func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	topics, err := s.store.ListTopics(enabledOnly)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if topics == nil {
		topics = []core.Topic{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// handleCreateTopic handles POST /api/topics.
func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var topic core.Topic
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if topic.Name == "" {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "topic name is required"})
		return
	}
	created, err := s.store.CreateTopic(topic)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

// handleGetTopic handles GET /api/topics/{id}.
func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	topic, err := s.store.GetTopic(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, topic)
}

// handleUpdateTopic handles PUT /api/topics/{id}.
func (s *Server) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetTopic(id); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	var topic core.Topic
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	topic.ID = id
	if err := s.store.UpdateTopic(topic); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, topic)
}

// handleListSources handles GET /api/sources.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	sources, err := s.store.ListSources(enabledOnly)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if sources == nil {
		sources = []core.Source{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// handleCreateSource handles POST /api/sources.
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var src core.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	if src.Target == "" {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "source target is required"})
		return
	}
	if src.Kind == "" {
		src.Kind = core.SourceRSS
	}
	created, err := s.store.CreateSource(src)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

// handleGetSource handles GET /api/sources/{id}.
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	src, err := s.store.GetSource(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, src)
}

// handleUpdateSource handles PUT /api/sources/{id}.
func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetSource(id); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	var src core.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	src.ID = id
	if err := s.store.UpdateSource(src); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, src)
}
