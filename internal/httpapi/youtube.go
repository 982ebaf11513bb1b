package httpapi

import (
	"net/http"

	"github.com/Danejw/viewbait/internal/httputil"
	"github.com/Danejw/viewbait/internal/youtube"
)

// handleYouTubeConnect starts the OAuth flow and returns the provider
// consent URL for the client to navigate to.
func (s *Server) handleYouTubeConnect(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	authURL, err := s.connector.Authorize(w, r.URL.Query().Get("return_to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

// handleYouTubeCallback finishes the OAuth flow. The client forwards the
// provider's code and state here with the user's JWT attached; the state
// cookie set during connect travels along.
func (s *Server) handleYouTubeCallback(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	returnTo, err := s.connector.HandleCallback(w, r, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.videos.InvalidateUser(userID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"return_to": returnTo})
}

func (s *Server) handleYouTubeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	status, err := s.connector.ConnectionStatus(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (s *Server) handleYouTubeDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.connector.Disconnect(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.videos.InvalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleYouTubeChannel(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	channel, err := s.videos.Channel(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("channel", channel))
}

func (s *Server) handleYouTubeVideos(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	videos, err := s.videos.RecentVideos(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if videos == nil {
		videos = []youtube.Video{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("videos", videos))
}
