package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/solite/internal/api"
	"github.com/charlesng35/solite/internal/app"
	iauth "github.com/charlesng35/solite/internal/auth"
	sharedtestutil "github.com/charlesng35/solite/internal/database/testutil"
	"github.com/charlesng35/solite/internal/fanout"
	"github.com/charlesng35/solite/internal/middleware"
	"github.com/charlesng35/solite/internal/services"
	"github.com/charlesng35/solite/internal/store"
	"github.com/charlesng35/solite/pkg/crypto"
	"github.com/charlesng35/solite/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T             *testing.T
	DB            *gorm.DB
	Router        *gin.Engine
	JWT           *iauth.JWTService
	Notifications *services.NotificationService
	Attachments   *MemoryAttachments
	Fanout        *InlineFanout
}

// NewEnv provisions a fresh handler test environment running every service in one router.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.OpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server:  app.ServerConfig{Service: app.ServiceAll},
		Storage: app.StorageConfig{MaxUploadBytes: 1 << 20},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}

	users, err := services.NewUserService(db, jwtSvc, services.WithPasswordHasher(crypto.NewHasher(bcrypt.MinCost)))
	require.NoError(t, err)

	notificationStore, err := store.NewGormStore(db)
	require.NoError(t, err)
	notificationSvc, err := services.NewNotificationService(notificationStore, nil)
	require.NoError(t, err)

	attachments := NewMemoryAttachments()
	inline := &InlineFanout{jwt: jwtSvc, notifications: notificationSvc}
	posts, err := services.NewPostService(db,
		services.WithAttachmentStore(attachments),
		services.WithFanout(inline),
	)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:        cfg,
		JWT:           jwtSvc,
		Users:         users,
		Posts:         posts,
		Notifications: notificationSvc,
		RateStore:     middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Notifications: notificationSvc,
		Attachments:   attachments,
		Fanout:        inline,
	}
}

// InlineFanout delivers post notifications synchronously through the notification
// service, authenticating the job's bearer token like the HTTP endpoint would.
type InlineFanout struct {
	jwt           *iauth.JWTService
	notifications *services.NotificationService

	mu   sync.Mutex
	Jobs []fanout.Job
	Err  error
}

// Submit implements services.FanoutSubmitter.
func (f *InlineFanout) Submit(job fanout.Job) error {
	f.mu.Lock()
	f.Jobs = append(f.Jobs, job)
	forced := f.Err
	f.mu.Unlock()
	if forced != nil {
		return forced
	}

	claims, err := f.jwt.ValidateAccessToken(job.BearerToken)
	if err != nil {
		return err
	}
	_, _, err = f.notifications.Create(context.Background(), services.CreateNotificationInput{
		PostID:      job.PostID,
		Message:     job.Message,
		RequesterID: claims.UserID,
	})
	return err
}

// MemoryAttachments keeps uploaded objects in memory.
type MemoryAttachments struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

// NewMemoryAttachments constructs an empty attachment store.
func NewMemoryAttachments() *MemoryAttachments {
	return &MemoryAttachments{Objects: map[string][]byte{}}
}

// Put implements services.AttachmentStore.
func (m *MemoryAttachments) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return "http://objects.test/solite/" + key, nil
}

// SignedUpUser is a registered user with a valid access token.
type SignedUpUser struct {
	ID    string
	Email string
	Token string
}

// SignUp registers a random user through the API and signs in.
func (e *Env) SignUp(password string) SignedUpUser {
	e.T.Helper()

	email := "user-" + uuid.NewString() + "@example.com"
	payload := map[string]string{"email": email, "password": password}

	w := e.Request(http.MethodPost, "/api/auth/signup", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	w = e.Request(http.MethodPost, "/api/auth/signin", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.Token)

	return SignedUpUser{ID: result.User.ID, Email: result.User.Email, Token: result.Token}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// Multipart posts a multipart form with an optional file part named "file".
func (e *Env) Multipart(path string, fields map[string]string, fileName string, file []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.T, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(e.T, err)
		_, err = part.Write(file)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.Do(req, token)
}

// Do serves req with an optional bearer token.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
