package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Danejw/viewbait/internal/app/services/assets"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/httputil"
)

func (s *Server) handleListStyles(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	styles, err := s.assets.ListStyles(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if styles == nil {
		styles = []database.Style{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("styles", styles))
}

func (s *Server) handleCreateStyle(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var create database.StyleCreate
	if !httputil.DecodeJSON(w, r, &create) {
		return
	}

	style, err := s.assets.CreateStyle(r.Context(), userID, create)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, envelope("style", style))
}

func (s *Server) handleUpdateStyle(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var update database.StyleUpdate
	if !httputil.DecodeJSON(w, r, &update) {
		return
	}

	style, err := s.assets.UpdateStyle(r.Context(), userID, mux.Vars(r)["id"], update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("style", style))
}

func (s *Server) handleDeleteStyle(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.assets.DeleteStyle(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPalettes(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	palettes, err := s.assets.ListPalettes(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if palettes == nil {
		palettes = []database.Palette{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("palettes", palettes))
}

func (s *Server) handleCreatePalette(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var create database.PaletteCreate
	if !httputil.DecodeJSON(w, r, &create) {
		return
	}

	palette, err := s.assets.CreatePalette(r.Context(), userID, create)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, envelope("palette", palette))
}

func (s *Server) handleUpdatePalette(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var update database.PaletteUpdate
	if !httputil.DecodeJSON(w, r, &update) {
		return
	}

	palette, err := s.assets.UpdatePalette(r.Context(), userID, mux.Vars(r)["id"], update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("palette", palette))
}

func (s *Server) handleDeletePalette(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.assets.DeletePalette(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFaces(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	faces, err := s.assets.ListFaces(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if faces == nil {
		faces = []database.Face{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("faces", faces))
}

func (s *Server) handleUploadFace(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var upload assets.FaceUpload
	if !httputil.DecodeJSON(w, r, &upload) {
		return
	}

	face, err := s.assets.UploadFace(r.Context(), userID, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, envelope("face", face))
}

func (s *Server) handleDeleteFace(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.assets.DeleteFace(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
