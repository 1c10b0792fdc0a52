package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/verify"

	// Image formats accepted by upload validation.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Engine runs the verification flows. Satisfied by verify.Engine.
type Engine interface {
	VerifyIdentity(ctx context.Context, passportImage, selfieImage []byte, userID int64) (*verify.Result, error)
	Reauthenticate(ctx context.Context, selfieImage []byte, userID int64) (*verify.Result, error)
	Threshold() float64
}

// VerifyHandler handles the verification endpoints.
type VerifyHandler struct {
	engine Engine
}

// NewVerifyHandler creates a new verification handler.
func NewVerifyHandler(engine Engine) *VerifyHandler {
	return &VerifyHandler{engine: engine}
}

// allowedImageExts lists the upload file extensions we accept.
var allowedImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// readImageUpload reads a single image from the multipart form and validates
// it. On failure it returns a zero-length slice plus the HTTP status and
// message to respond with; validation failures are client errors, never
// retried server-side.
func readImageUpload(r *http.Request, field string) ([]byte, int, string) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Sprintf("%s is required", field)
	}
	defer file.Close()

	if header.Size > constants.MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, "File too large"
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedImageExts[ext]; !ok {
		log.Printf("rejected upload %q: unsupported extension", sanitizeForLog(header.Filename))
		return nil, http.StatusUnsupportedMediaType, "Unsupported file type"
	}

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		return nil, http.StatusBadRequest, errInvalidRequestBody
	}
	if len(data) > constants.MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, "File too large"
	}

	// The extension check only catches honest mistakes; make sure the bytes
	// actually decode as an image before sending them to the face service.
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, http.StatusUnsupportedMediaType, "Unsupported file type"
	}

	return data, 0, ""
}

// parseUpload wraps the request body with a hard size cap and parses the
// multipart form. Returns the status and message to respond with on failure.
func parseUpload(w http.ResponseWriter, r *http.Request) (int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*constants.MaxUploadSize+constants.MaxMultipartMemory)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, "File too large"
		}
		return http.StatusBadRequest, errInvalidRequestBody
	}
	return 0, ""
}

// VerifyIdentity handles POST /api/v1/verify_identity: a passport photo page
// against a live selfie. An optional user_id form value enables persistence
// of the accepted selfie embedding.
func (h *VerifyHandler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	vid := uuid.NewString()
	w.Header().Set("X-Verification-ID", vid)

	if status, msg := parseUpload(w, r); status != 0 {
		respondError(w, status, msg)
		return
	}

	passport, status, msg := readImageUpload(r, "passport_image")
	if status != 0 {
		respondError(w, status, msg)
		return
	}
	selfie, status, msg := readImageUpload(r, "selfie_image")
	if status != 0 {
		respondError(w, status, msg)
		return
	}

	var userID int64
	if v := r.FormValue("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = id
	}

	result, err := h.engine.VerifyIdentity(r.Context(), passport, selfie, userID)
	if err != nil {
		log.Printf("[%s] identity verification failed: %v", vid, err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	log.Printf("[%s] identity verification user=%d authenticated=%t", vid, userID, result.IsAuthenticated)
	respondJSON(w, http.StatusOK, result)
}

// Verify handles POST /api/v1/verify: reauthentication of a known user's
// selfie against their stored embedding history.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	vid := uuid.NewString()
	w.Header().Set("X-Verification-ID", vid)

	if status, msg := parseUpload(w, r); status != 0 {
		respondError(w, status, msg)
		return
	}

	userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	selfie, status, msg := readImageUpload(r, "selfie_image")
	if status != 0 {
		respondError(w, status, msg)
		return
	}

	result, err := h.engine.Reauthenticate(r.Context(), selfie, userID)
	if err != nil {
		log.Printf("[%s] reauthentication failed: %v", vid, err)
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	log.Printf("[%s] reauthentication user=%d authenticated=%t", vid, userID, result.IsAuthenticated)
	respondJSON(w, http.StatusOK, result)
}
