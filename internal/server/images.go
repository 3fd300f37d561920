package server

import (
	"encoding/base64"
	"errors"
	"image"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/menta2k/infographic-lens/pkg/session"
)

var errNoImage = errors.New("no image available")

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()
	if st.Data == nil || st.Data.Image == nil {
		writeError(w, http.StatusNotFound, errNoImage)
		return
	}
	data, err := base64.StdEncoding.DecodeString(st.Data.Image.Base64)
	if err != nil {
		s.logger.Error("decode image", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	mime := st.Data.Image.MimeType
	if mime == "" {
		mime = s.processor.DetectMIME(data)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	st, img, ok := s.analyzedImage(w)
	if !ok {
		return
	}
	s.writePNG(w, s.processor.CreateAnnotatedOverlay(img, st.Segments()))
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid segment index"))
		return
	}

	st, img, ok := s.analyzedImage(w)
	if !ok {
		return
	}
	segments := st.Segments()
	if index < 0 || index >= len(segments) {
		writeError(w, http.StatusNotFound, errors.New("segment not found"))
		return
	}

	crop, err := s.processor.CropSegment(img, segments[index].Bounds)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writePNG(w, crop)
}

// analyzedImage decodes the current image once analysis is complete
func (s *Server) analyzedImage(w http.ResponseWriter) (session.State, image.Image, bool) {
	st := s.session.State()
	if st.Status != session.StatusComplete || st.Data == nil || st.Data.Image == nil {
		writeError(w, http.StatusNotFound, errNoImage)
		return st, nil, false
	}
	img, err := s.processor.DecodeGenerated(st.Data.Image)
	if err != nil {
		s.logger.Error("decode image", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return st, nil, false
	}
	return st, img, true
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	data, mime, err := s.processor.EncodeImage(img, "png", 0)
	if err != nil {
		s.logger.Error("encode png", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
