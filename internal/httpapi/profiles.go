package httpapi

import (
	"net/http"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/httputil"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("profile", profile))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var update database.ProfileUpdate
	if !httputil.DecodeJSON(w, r, &update) {
		return
	}

	profile, err := s.profiles.Update(r.Context(), userID, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("profile", profile))
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	credits, err := s.profiles.Credits(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"credits": credits})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	dashboard, err := s.studio.Dashboard(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dashboard)
}
