package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/solite/internal/app"
	"github.com/charlesng35/solite/internal/fanout"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func testConfig(t *testing.T, service string) *app.Config {
	t.Helper()
	return &app.Config{
		Server: app.ServerConfig{Service: service},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "solite.sqlite"),
		},
		Notifications: app.NotificationsConfig{
			Store:           app.NotificationStoreGorm,
			Retention:       24 * time.Hour,
			CleanupSchedule: "@every 1m",
		},
		Services: app.ServicesConfig{FanoutTimeout: 2 * time.Second},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "bootstrap-test-secret-0123456789abcdef",
				Issuer: "bootstrap-test",
				TTL:    time.Hour,
			},
			PasswordCost: 4,
		},
		Storage: app.StorageConfig{MaxUploadBytes: 1 << 20},
	}
}

func TestBootstrapRuntimeAllServicesFanOutOverHTTP(t *testing.T) {
	// The fan-out client needs the server URL before the router exists.
	var handler atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Load().(http.Handler).ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, app.ServiceAll)
	cfg.Services.NotificationURL = srv.URL

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	handler.Store(http.Handler(stack.Router))
	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Hub)
	require.NotNil(t, stack.Dispatcher)
	require.NotNil(t, stack.Cleaner)
	require.Nil(t, stack.Mongo)

	call := func(method, path, token string, body any) (int, envelope) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, srv.URL+path, &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var env envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}

	creds := map[string]string{"email": "alice@example.com", "password": "Secret123!"}
	status, _ := call(http.MethodPost, "/api/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, status)

	status, env := call(http.MethodPost, "/api/auth/signin", "", creds)
	require.Equal(t, http.StatusOK, status)
	var signin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &signin))
	require.NotEmpty(t, signin.Token)

	status, _ = call(http.MethodPost, "/api/posts", signin.Token, map[string]string{
		"title":   "Bootstrapped",
		"content": "hello from the post service",
	})
	require.Equal(t, http.StatusCreated, status)

	var listed []struct {
		Message string `json:"message"`
		IsSeen  bool   `json:"is_seen"`
	}
	require.Eventually(t, func() bool {
		_, env := call(http.MethodGet, "/api/notifications", signin.Token, nil)
		listed = nil
		return json.Unmarshal(env.Data, &listed) == nil && len(listed) == 1
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, `A new post titled "Bootstrapped" has been created.`, listed[0].Message)
	require.True(t, listed[0].IsSeen)

	status, _ = call(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx, zap.NewNop()))
}

func TestBootstrapRuntimeSingleService(t *testing.T) {
	cfg := testConfig(t, app.ServiceUser)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Dispatcher)
	require.Nil(t, stack.Hub)
	require.Nil(t, stack.Cleaner)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/users", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapRuntimeRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t, app.ServiceNotification)
	cfg.Notifications.CleanupSchedule = "whenever"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "start notification cleanup")
}

func TestShutdownNilStack(t *testing.T) {
	var stack *runtimeStack
	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "   "
	require.ErrorContains(t, ensureSecretsPresent(cfg), "auth.jwt.secret")

	cfg.Auth.JWT.Secret = " padded "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "padded", cfg.Auth.JWT.Secret)
}

func TestLoadApplicationConfig(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "does not exist")

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9191\n"), 0o600))

	cfg, err := loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)

	cfg, err = loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
}

func TestRunRejectsUnknownServiceFlag(t *testing.T) {
	dir := t.TempDir()
	err := run(context.Background(), []string{"-config", dir, "-service", "billing"})
	require.ErrorContains(t, err, "server.service")

	err = run(context.Background(), []string{"-h"})
	require.ErrorIs(t, err, flag.ErrHelp)
}

type loopbackNotifier struct {
	url    string
	delay  time.Duration
	result chan error
}

func (n *loopbackNotifier) Notify(ctx context.Context, _ fanout.Job) error {
	time.Sleep(n.delay)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url, nil)
	if err == nil {
		var resp *http.Response
		if resp, err = http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}
	n.result <- err
	return err
}

func TestStopServingDrainsSelfFanoutBeforeClosingListener(t *testing.T) {
	for _, tc := range []struct {
		name       string
		selfFanout bool
		delivered  bool
	}{
		{name: "same process", selfFanout: true, delivered: true},
		{name: "split services", selfFanout: false, delivered: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})}
			go func() { _ = server.Serve(ln) }()

			notifier := &loopbackNotifier{url: "http://" + ln.Addr().String(), delay: 200 * time.Millisecond, result: make(chan error, 1)}
			dispatcher, err := fanout.NewDispatcher(notifier)
			require.NoError(t, err)
			stack := &runtimeStack{Dispatcher: dispatcher, SelfFanout: tc.selfFanout}

			require.NoError(t, dispatcher.Submit(fanout.Job{PostID: "p1", Message: "m"}))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, stopServing(ctx, server, stack, zap.NewNop()))

			deliveryErr := <-notifier.result
			if tc.delivered {
				require.NoError(t, deliveryErr)
			} else {
				require.Error(t, deliveryErr)
			}
		})
	}
}

func TestBootstrapRuntimeMarksSelfFanout(t *testing.T) {
	cfg := testConfig(t, app.ServiceAll)
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background(), zap.NewNop()) })
	require.True(t, stack.SelfFanout)

	cfg = testConfig(t, app.ServicePost)
	postOnly, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = postOnly.Shutdown(context.Background(), zap.NewNop()) })
	require.False(t, postOnly.SelfFanout)
}
