// ==============================================================================
// SUBMISSION GATEWAY - internal/gateway/client.go
// ==============================================================================
// HTTP client for the verification backend. Uploads are strictly sequential
// in checklist order and the batch aborts on the first failure.
// ==============================================================================

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
	"kycflow/pkg/logger"
)

const defaultHTTPTimeout = 30 * time.Second

// UploadError reports which document failed and what the backend said.
type UploadError struct {
	DocumentType string
	StatusCode   int
	Message      string
}

func (e *UploadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upload %s failed: %s", e.DocumentType, e.Message)
	}
	return fmt.Sprintf("upload %s failed with status %d", e.DocumentType, e.StatusCode)
}

func (e *UploadError) Unwrap() error { return errors.ErrUploadFailed }

// Client talks to the backend's KYC endpoints.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     logger.Logger
}

// NewClient builds a gateway client. token may be empty for the temporary
// (pre-registration) path; when set it is sent as a Bearer credential.
func NewClient(baseURL, token string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// GetStatus fetches the subject's verification status.
func (c *Client) GetStatus(ctx context.Context, subject domain.Subject) (*domain.StatusResponse, error) {
	if !subject.Valid() {
		return nil, errors.ErrInvalidSubject
	}

	q := url.Values{}
	if subject.IsTemp() {
		q.Set("temp_user_id", subject.TempUserID)
	} else {
		q.Set("user_id", subject.UserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/kyc/status?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build status request")
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStatusFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: backend returned status %d", errors.ErrStatusFetch, resp.StatusCode)
	}

	var status domain.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", errors.ErrStatusFetch, err)
	}
	return &status, nil
}

// Submit uploads the artifacts one at a time, in the order given, stopping
// at the first failure. On success the caller is expected to refresh the
// status immediately.
func (c *Client) Submit(ctx context.Context, subject domain.Subject, artifacts []domain.UploadArtifact) error {
	if !subject.Valid() {
		return errors.ErrInvalidSubject
	}

	for _, artifact := range artifacts {
		if err := c.Upload(ctx, subject, artifact); err != nil {
			return err
		}
	}
	return nil
}

// Upload sends one document as a multipart form with fields file,
// document_type and user_id.
func (c *Client) Upload(ctx context.Context, subject domain.Subject, artifact domain.UploadArtifact) error {
	if artifact.File == nil {
		return &UploadError{DocumentType: artifact.DocumentType, Message: "no file staged"}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreatePart(filePartHeader(artifact.File))
	if err != nil {
		return errors.Wrap(err, "create multipart file part")
	}
	if _, err := part.Write(artifact.File.Data); err != nil {
		return errors.Wrap(err, "write multipart file part")
	}
	if err := writer.WriteField("document_type", artifact.DocumentType); err != nil {
		return errors.Wrap(err, "write document_type field")
	}
	if err := writer.WriteField("user_id", subject.ID()); err != nil {
		return errors.Wrap(err, "write user_id field")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/kyc/upload", &body)
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &UploadError{DocumentType: artifact.DocumentType, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UploadError{
			DocumentType: artifact.DocumentType,
			StatusCode:   resp.StatusCode,
			Message:      errorMessage(resp.Body),
		}
	}

	var uploaded domain.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err == nil && uploaded.Error != "" {
		return &UploadError{
			DocumentType: artifact.DocumentType,
			StatusCode:   resp.StatusCode,
			Message:      uploaded.Error,
		}
	}

	c.log.Info("document uploaded", map[string]interface{}{
		"document_type": artifact.DocumentType,
		"subject":       subject.ID(),
		"size_bytes":    artifact.File.Size(),
	})
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// filePartHeader builds a file part carrying the artifact's own content type
// instead of multipart's default application/octet-stream.
func filePartHeader(file *domain.File) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, `\"`).Replace(s)
}

// errorMessage extracts the backend's error string from a failure body.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
