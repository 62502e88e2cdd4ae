// ==============================================================================
// SIMULATOR HANDLERS - internal/sim/handlers.go
// ==============================================================================

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"kycflow/pkg/domain"
)

const maxUploadBytes = 10 << 20

// respondJSON sends a JSON response with proper content type and status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
	}
}

// respondError sends a standardized error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationError reports per-field validation failures.
func (s *Server) respondValidationError(w http.ResponseWriter, fields map[string]string) {
	s.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "validation failed",
		"fields": fields,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ------------------------------------------------------------------------------
// GET /kyc/status
// ------------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := s.subjectFromQuery(w, r)
	if !ok {
		return
	}

	records := s.store.Documents(subjectID)
	docs := make([]domain.DocumentRecord, 0, len(records))
	for _, rec := range records {
		docs = append(docs, domain.DocumentRecord{
			DocumentType:    rec.DocumentType,
			Status:          rec.Status,
			RejectionReason: rec.RejectionReason,
			CreatedAt:       rec.CreatedAt,
			UpdatedAt:       rec.UpdatedAt,
		})
	}

	s.respondJSON(w, http.StatusOK, domain.StatusResponse{
		Status:            s.store.Overall(subjectID, s.required),
		Documents:         docs,
		RequiredDocuments: s.required,
	})
}

// subjectFromQuery enforces that exactly one of user_id and temp_user_id is
// present and that temp identifiers carry the expected prefix.
func (s *Server) subjectFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	tempID := strings.TrimSpace(r.URL.Query().Get("temp_user_id"))

	if (userID == "") == (tempID == "") {
		s.respondError(w, http.StatusBadRequest, "exactly one of user_id and temp_user_id is required")
		return "", false
	}
	if tempID != "" {
		if !strings.HasPrefix(tempID, domain.TempIDPrefix) || tempID == domain.TempIDPrefix {
			s.respondError(w, http.StatusBadRequest, "temp_user_id must start with temp_")
			return "", false
		}
		return tempID, true
	}
	return userID, true
}

// ------------------------------------------------------------------------------
// POST /kyc/upload
// ------------------------------------------------------------------------------

type uploadRequest struct {
	DocumentType string `validate:"required,document_type"`
	UserID       string `validate:"required,subject_id"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := uploadRequest{
		DocumentType: r.FormValue("document_type"),
		UserID:       r.FormValue("user_id"),
	}
	if err := s.validator.Validate(req); err != nil {
		s.logger.Warn("Upload request validation failed", map[string]interface{}{
			"error": err.Error(),
		})
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unreadable file")
		return
	}
	if size == 0 {
		s.respondError(w, http.StatusBadRequest, "file is empty")
		return
	}

	rec := s.store.AddDocument(req.UserID, req.DocumentType, header.Filename, size)
	s.logger.Info("Document received", map[string]interface{}{
		"document_id":   rec.ID.String(),
		"document_type": req.DocumentType,
		"subject":       req.UserID,
		"size_bytes":    size,
	})

	s.respondJSON(w, http.StatusOK, domain.UploadResponse{
		Success: true,
		Message: fmt.Sprintf("%s uploaded successfully", req.DocumentType),
	})
}

// ------------------------------------------------------------------------------
// POST /admin/kyc/review
// ------------------------------------------------------------------------------

type reviewRequest struct {
	UserID       string `json:"user_id" validate:"required,subject_id"`
	DocumentType string `json:"document_type" validate:"required,document_type"`
	Status       string `json:"status" validate:"required,oneof=approved rejected"`
	Reason       string `json:"reason"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req reviewRequest
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			s.respondError(w, http.StatusBadRequest, "Request body is required")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid request body format")
		return
	}
	if fields := s.validator.ValidateStructured(req); len(fields) > 0 {
		s.respondValidationError(w, fields)
		return
	}

	if !s.store.Review(req.UserID, req.DocumentType, domain.DocumentStatus(req.Status), req.Reason) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}

	s.logger.Info("Review decision applied", map[string]interface{}{
		"subject":       req.UserID,
		"document_type": req.DocumentType,
		"decision":      req.Status,
	})
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "review recorded"})
}

// adminAuth verifies the Bearer token on admin routes when a secret is
// configured. Without a secret the simulator runs open, which is fine for
// local development.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			s.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
