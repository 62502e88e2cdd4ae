// ==============================================================================
// KYC FLOW DRIVER - cmd/kycflow/main.go
// ==============================================================================
// Command-line driver for exercising a full verification session against a
// real backend (or the simulator in cmd/kyc-sim). Stages documents from disk,
// captures the selfie from a file-backed camera device, submits, and follows
// the status until a terminal outcome.
// ==============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"kycflow/internal/capture"
	"kycflow/internal/flow"
	"kycflow/internal/gateway"
	"kycflow/internal/resume"
	"kycflow/pkg/config"
	"kycflow/pkg/domain"
	"kycflow/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		docType   = flag.String("doc", "id_front", "document type id (id_front, proof_of_address)")
		userID    = flag.String("user", "", "authenticated user id; omit to use a generated temporary id")
		frontPath = flag.String("front", "", "path to the ID front image")
		backPath  = flag.String("back", "", "path to the ID back image")
		selfie    = flag.String("selfie", "", "path to a selfie image staged directly (fallback when no camera)")
		camera    = flag.String("camera", "", "path to an image served as the camera feed")
		proofPath = flag.String("proof", "", "path to the proof of address document")
		follow    = flag.Duration("follow", 2*time.Minute, "how long to follow the status after submission")
		mintToken = flag.Bool("mint-token", false, "print a signed admin token for the simulator and exit")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New("kycflow")

	if *mintToken {
		if err := printAdminToken(cfg.Sim.JWTSecret); err != nil {
			log.Fatal("Token minting failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	subject, err := buildSubject(*userID)
	if err != nil {
		log.Fatal("Invalid subject", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Starting verification session", map[string]interface{}{
		"subject": subject.ID(),
		"backend": cfg.Backend.BaseURL,
	})

	store, err := buildResumeStore(cfg, log)
	if err != nil {
		log.Fatal("Resume store unavailable", map[string]interface{}{"error": err.Error()})
	}

	cameraSource := *camera
	if cameraSource == "" {
		cameraSource = cfg.Flow.CaptureSource
	}
	var device capture.Device
	if cameraSource != "" {
		device = capture.NewFileDevice(cameraSource)
	}

	session, err := flow.NewSession(flow.Options{
		Subject: subject,
		Gateway: gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.AuthToken, cfg.Backend.HTTPTimeout, log),
		Camera:  capture.NewAdapter(device, nil, log),
		Resume:  store,
		Constraints: capture.Constraints{
			Width:      cfg.Flow.CameraWidth,
			Height:     cfg.Flow.CameraHeight,
			FacingMode: cfg.Flow.CameraFacing,
		},
		PollInterval: cfg.Flow.PollInterval,
		Logger:       log,
	})
	if err != nil {
		log.Fatal("Session setup failed", map[string]interface{}{"error": err.Error()})
	}
	defer session.Close(nil)

	if err := run(session, log, *docType, *frontPath, *backPath, *selfie, cameraSource, *proofPath, *follow); err != nil {
		log.Fatal("Verification run failed", map[string]interface{}{"error": err.Error()})
	}
}

func run(session *flow.Session, log logger.Logger, docType, frontPath, backPath, selfiePath, cameraSource, proofPath string, follow time.Duration) error {
	ctx := context.Background()

	if err := session.SelectDocumentType(docType); err != nil {
		return err
	}

	stages := []struct {
		kind domain.SlotKind
		path string
	}{
		{domain.SlotFront, frontPath},
		{domain.SlotBack, backPath},
		{domain.SlotProofOfAddress, proofPath},
	}
	for _, stage := range stages {
		if stage.path == "" {
			continue
		}
		file, err := loadFile(stage.path)
		if err != nil {
			return err
		}
		if err := session.StageFile(stage.kind, file); err != nil {
			return fmt.Errorf("stage %s: %w", stage.kind, err)
		}
		log.Info("Staged document", map[string]interface{}{
			"slot": string(stage.kind),
			"file": filepath.Base(stage.path),
		})
	}

	if session.Step() == flow.StepSelfie {
		if err := takeSelfie(ctx, session, log, selfiePath, cameraSource); err != nil {
			return err
		}
	}

	if session.Step() != flow.StepReview {
		return fmt.Errorf("expected to reach review, stuck at %s", session.Step())
	}

	if err := session.Submit(ctx); err != nil {
		return err
	}
	log.Info("Submission accepted", map[string]interface{}{"subject": session.Subject().ID()})

	return followStatus(ctx, session, log, follow)
}

// takeSelfie prefers the camera feed and falls back to a staged file when
// the camera is unavailable.
func takeSelfie(ctx context.Context, session *flow.Session, log logger.Logger, selfiePath, cameraSource string) error {
	if cameraSource != "" {
		if err := session.StartCamera(ctx); err == nil {
			if err := session.CaptureSelfie(ctx); err == nil {
				log.Info("Selfie captured from camera", nil)
				return nil
			}
		} else {
			log.Warn("Camera unavailable, falling back to file upload", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if selfiePath == "" {
		return fmt.Errorf("no selfie source: provide -camera or -selfie")
	}
	file, err := loadFile(selfiePath)
	if err != nil {
		return err
	}
	return session.StageFile(domain.SlotSelfie, file)
}

func followStatus(ctx context.Context, session *flow.Session, log logger.Logger, follow time.Duration) error {
	deadline := time.Now().Add(follow)
	for {
		resp := session.LastStatus()
		if resp != nil {
			log.Info("Verification status", map[string]interface{}{
				"status":     string(resp.Status),
				"documents":  len(resp.Documents),
				"next_steps": session.NextSteps(),
			})
			if resp.Status.Terminal() {
				return nil
			}
		}
		if time.Now().After(deadline) {
			log.Info("Follow window elapsed before a terminal status", nil)
			return nil
		}
		time.Sleep(5 * time.Second)
		if _, err := session.RefreshStatus(ctx); err != nil {
			log.Warn("Status refresh failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// loadFile reads a document from disk and sniffs its content type.
func loadFile(path string) (*domain.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &domain.File{
		Name:     filepath.Base(path),
		MimeType: mimetype.Detect(data).String(),
		Data:     data,
	}, nil
}

func buildSubject(userID string) (domain.Subject, error) {
	if userID != "" {
		return domain.NewUserSubject(userID)
	}
	return domain.GenerateTempSubject()
}

func buildResumeStore(cfg *config.Config, log logger.Logger) (resume.Store, error) {
	if !cfg.Resume.Enabled {
		return nil, nil
	}
	store, err := resume.NewRedisStore(cfg.Resume.RedisURL, cfg.Resume.RedisPassword, cfg.Resume.RedisDB, cfg.Resume.SnapshotTTL)
	if err != nil {
		return nil, err
	}
	log.Info("Resume snapshots enabled", map[string]interface{}{"redis": cfg.Resume.RedisURL})
	return store, nil
}

// printAdminToken mints a short-lived HS256 token for the simulator's admin
// review endpoint.
func printAdminToken(secret string) error {
	if secret == "" {
		return fmt.Errorf("SIM_JWT_SECRET is not set")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "reviewer",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}
