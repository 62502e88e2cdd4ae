// ==============================================================================
// BACKEND SIMULATOR - internal/sim/server.go
// ==============================================================================
// A stand-in for the verification backend used in local development and in
// end-to-end tests. It implements the upload and status contracts plus an
// admin endpoint for driving review decisions.
// ==============================================================================

package sim

import (
	"net/http"

	"github.com/gorilla/mux"

	"kycflow/pkg/logger"
	"kycflow/pkg/validator"
)

// defaultRequiredDocuments is the checklist the simulator expects before the
// overall status moves from in_progress to pending.
var defaultRequiredDocuments = []string{"id_front", "id_back", "selfie"}

// Options configures the simulator.
type Options struct {
	// RequiredDocuments overrides the default checklist.
	RequiredDocuments []string
	// JWTSecret, when set, protects the admin review endpoint.
	JWTSecret string
	Logger    logger.Logger
}

// Server is the simulator's HTTP surface. It implements http.Handler so
// tests can mount it on httptest directly.
type Server struct {
	store     *Store
	validator *validator.Validator
	logger    logger.Logger
	required  []string
	jwtSecret string
	router    *mux.Router
}

// NewServer builds the simulator with an empty document store.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	required := opts.RequiredDocuments
	if len(required) == 0 {
		required = defaultRequiredDocuments
	}

	s := &Server{
		store:     NewStore(),
		validator: validator.New(),
		logger:    log,
		required:  required,
		jwtSecret: opts.JWTSecret,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/kyc/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/kyc/upload", s.handleUpload).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuth)
	admin.HandleFunc("/kyc/review", s.handleReview).Methods("POST")

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Store exposes the document store for test setup.
func (s *Server) Store() *Store { return s.store }
