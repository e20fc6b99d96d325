package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/mealsnap-be/internal/nutrition"
)

const multipartMemory = 32 << 20

// UploadHandler runs nutrition analysis on uploaded meal photos.
// Nothing is persisted; the client saves the result through /save_meal.
type UploadHandler struct {
	analyzer nutrition.Analyzer
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(analyzer nutrition.Analyzer) *UploadHandler {
	return &UploadHandler{analyzer: analyzer}
}

// UploadResponse is returned by a successful analysis.
type UploadResponse struct {
	Analysis  *nutrition.Analysis `json:"analysis"`
	ImageData string              `json:"image_data"`
}

// Upload handles a multipart meal photo with its weight.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("meal_photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" || header.Size == 0 {
		respondError(w, http.StatusBadRequest, "No file selected")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		respondServiceError(w, r, err, "Read upload")
		return
	}
	if len(image) == 0 {
		respondError(w, http.StatusBadRequest, "No file selected")
		return
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("weight")), 64)
	if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		respondError(w, http.StatusBadRequest, "weight must be a positive number")
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), nutrition.Request{
		Image:   image,
		Weight:  weight,
		Details: r.FormValue("meal_details"),
	})
	if err != nil {
		respondServiceError(w, r, err, "Analyze meal")
		return
	}

	log.Info().
		Str("filename", header.Filename).
		Int("bytes", len(image)).
		Float64("weight", weight).
		Float64("calories", analysis.Calories).
		Msg("Meal photo analyzed")

	respondJSON(w, http.StatusOK, UploadResponse{
		Analysis:  analysis,
		ImageData: base64.StdEncoding.EncodeToString(image),
	})
}
