package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/client"
	"notify_poller/internal/config"
	"notify_poller/internal/domain"
	httpserver "notify_poller/internal/http"
	"notify_poller/internal/http/controller"
	"notify_poller/internal/http/middleware"
	"notify_poller/internal/listener"
	"notify_poller/internal/model"
	"notify_poller/internal/queue"
	"notify_poller/internal/remote"
	"notify_poller/internal/service/notify"
	"notify_poller/internal/store/memory"
)

const testSecret = "e2e-secret"

func ginTestMode() {
	gin.SetMode(gin.TestMode)
}

type noopPublisher struct{}

func (n *noopPublisher) Publish(context.Context, []byte, string) error {
	return nil
}

func testServerConfig() *config.Config {
	return &config.Config{
		HTTPAddr:            ":0",
		RabbitPublishPrefix: "notification",
		MaxPageLimit:        100,
		JWTSecret:           testSecret,
		Telemetry:           config.Telemetry{ServiceName: "notification-store-e2e"},
	}
}

func startServer(t *testing.T, cfg *config.Config, publisher queue.Publisher) *httptest.Server {
	t.Helper()
	ginTestMode()

	logger := zap.NewNop()
	svc := notify.NewService(memory.New(logger), logger)
	handler := controller.NewHandler(cfg, svc, logger, publisher)
	server := httptest.NewServer(httpserver.NewRouter(cfg, handler, logger))
	t.Cleanup(server.Close)
	return server
}

// jwtTokens mints a fresh token for whichever user the request is for.
type jwtTokens struct{}

func (jwtTokens) Token(_ context.Context, userID string) (string, error) {
	return middleware.GenerateToken(testSecret, userID, time.Hour)
}

type testClient struct {
	*client.Client
	reg *prometheus.Registry
}

func newClient(t *testing.T, server *httptest.Server, checkpoints checkpoint.Store) *testClient {
	t.Helper()
	reg := prometheus.NewRegistry()
	store := remote.NewClientWithHTTP(server.URL, jwtTokens{}, zap.NewNop(), server.Client())
	c := client.New(store, checkpoints, nil, zap.NewNop(),
		client.WithInterval(time.Hour),
		client.WithMetrics(client.NewMetrics(reg)),
	)
	t.Cleanup(c.Reset)
	return &testClient{Client: c, reg: reg}
}

func (c *testClient) cycles(t *testing.T) float64 {
	t.Helper()
	mfs, err := c.reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "notify_poller_cycles_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// initialize starts polling for userID and waits for the cycle the
// scheduler runs on start to finish.
func (c *testClient) initialize(t *testing.T, userID string) {
	t.Helper()
	before := c.cycles(t)
	require.NoError(t, c.Initialize(userID))
	require.Eventually(t, func() bool {
		return c.cycles(t) > before
	}, 5*time.Second, 5*time.Millisecond)
}

func runCycle(t *testing.T, c *testClient) {
	t.Helper()
	require.True(t, c.CheckNow(context.Background()))
}

func postNotification(t *testing.T, server *httptest.Server, userID, title string) model.Notification {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"type":    domain.NotificationTypeChatMessage,
		"data":    map[string]string{"title": title, "message": title + " body"},
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/notifications", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data model.Notification `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

type recorder struct {
	mu     sync.Mutex
	events []listener.Event
}

func (r *recorder) HandleEvent(e listener.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) createdTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == listener.EventCreated {
			out = append(out, e.Notification.Title())
		}
	}
	return out
}
