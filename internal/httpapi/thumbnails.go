package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Danejw/viewbait/internal/app/services/thumbnails"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/httputil"
)

type generateInput struct {
	Title     string `json:"title,omitempty"`
	Prompt    string `json:"prompt"`
	StyleID   string `json:"style_id,omitempty"`
	PaletteID string `json:"palette_id,omitempty"`
	FaceID    string `json:"face_id,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Variants  int    `json:"variants,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var input generateInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}

	result, err := s.thumbnails.Generate(r.Context(), userID, thumbnails.GenerateRequest{
		Title:     input.Title,
		Prompt:    input.Prompt,
		StyleID:   input.StyleID,
		PaletteID: input.PaletteID,
		FaceID:    input.FaceID,
		Width:     input.Width,
		Height:    input.Height,
		Variants:  input.Variants,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListThumbnails(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := s.thumbnails.List(r.Context(), userID, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []database.Thumbnail{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("thumbnails", list))
}

func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	thumbnail, err := s.thumbnails.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("thumbnail", thumbnail))
}

func (s *Server) handleUpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var update database.ThumbnailUpdate
	if !httputil.DecodeJSON(w, r, &update) {
		return
	}

	thumbnail, err := s.thumbnails.Update(r.Context(), userID, mux.Vars(r)["id"], update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("thumbnail", thumbnail))
}

func (s *Server) handleDeleteThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.thumbnails.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVariants(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	variants, err := s.thumbnails.Variants(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if variants == nil {
		variants = []database.Variant{}
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("variants", variants))
}

type variantStatusInput struct {
	Status string `json:"status"`
}

func (s *Server) handleSetVariantStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var input variantStatusInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}

	variant, err := s.thumbnails.SetVariantStatus(r.Context(), userID, mux.Vars(r)["id"], input.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope("variant", variant))
}

func (s *Server) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.thumbnails.DeleteVariant(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
