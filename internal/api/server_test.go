package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/dispatcher"
	"github.com/crawlkit/crawld/internal/hash/sha256"
	idgen "github.com/crawlkit/crawld/internal/id/uuid"
	"github.com/crawlkit/crawld/internal/metrics"
	queuememory "github.com/crawlkit/crawld/internal/queue/memory"
	"github.com/crawlkit/crawld/internal/service"
	storagememory "github.com/crawlkit/crawld/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type testStack struct {
	server *httptest.Server
	store  *storagememory.RecordStore
	queue  *queuememory.Queue
}

func newTestStack(t *testing.T, cfg config.Config) *testStack {
	t.Helper()

	store := storagememory.NewRecordStore()
	queue := queuememory.NewQueue(16)
	d := dispatcher.New(queue, idgen.New(), systemClock{}, nil)
	svc := service.New(store, d, sha256.New(), idgen.New(), systemClock{}, zap.NewNop())

	srv := httptest.NewServer(NewServer(svc, cfg, zap.NewNop()).Router())
	t.Cleanup(srv.Close)

	return &testStack{server: srv, store: store, queue: queue}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func postCrawl(t *testing.T, stack *testStack, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(stack.server.URL+"/crawl", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCrawlSubmission(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})

	resp, body := postCrawl(t, stack, `{"urls": ["https://example.com/a", "https://example.com/b"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ids := strings.Split(body["crawl_ids"], ",")
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])

	rec, err := stack.store.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	require.Equal(t, crawl.StatusAccepted, rec.Status)
	require.Equal(t, "https://example.com/a", rec.URL)
}

func TestCrawlSubmissionDeduplicates(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})

	_, first := postCrawl(t, stack, `{"urls": ["https://example.com"]}`)
	_, second := postCrawl(t, stack, `{"urls": ["https://example.com"]}`)
	require.Equal(t, first["crawl_ids"], second["crawl_ids"])
}

func TestCrawlValidation(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})

	for name, body := range map[string]string{
		"empty list":   `{"urls": []}`,
		"missing urls": `{}`,
		"blank url":    `{"urls": [""]}`,
		"bad json":     `{"urls": `,
	} {
		resp, out := postCrawl(t, stack, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		require.NotEmpty(t, out["error"], name)
	}
}

func TestStatusLifecycle(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})
	ctx := context.Background()

	_, body := postCrawl(t, stack, `{"urls": ["https://example.com"]}`)
	id := body["crawl_ids"]

	resp, err := http.Get(stack.server.URL + "/status/" + id)
	require.NoError(t, err)
	out := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Accepted", out["status"])
	_, hasHTML := out["html"]
	require.False(t, hasHTML)

	require.NoError(t, stack.store.UpdateStatus(ctx, id, crawl.StatusComplete, "gs://bucket/page.html"))
	resp, err = http.Get(stack.server.URL + "/status/" + id)
	require.NoError(t, err)
	out = decodeBody(t, resp)
	require.Equal(t, "Complete", out["status"])
	require.Equal(t, "gs://bucket/page.html", out["html"])
}

func TestStatusUnknownID(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})

	resp, err := http.Get(stack.server.URL + "/status/does-not-exist")
	require.NoError(t, err)
	out := decodeBody(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Crawl ID not found.", out["error"])
}

func TestRecrawl(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})
	ctx := context.Background()

	_, body := postCrawl(t, stack, `{"urls": ["https://example.com"]}`)
	id := body["crawl_ids"]

	// Drain the submission task so the recrawl task is observable.
	_, err := stack.queue.Dequeue(ctx)
	require.NoError(t, err)

	resp, err := http.Get(stack.server.URL + "/recrawl/" + id)
	require.NoError(t, err)
	out := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, id, out["crawl_ids"])

	task, err := stack.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, id, task.CrawlID)
}

func TestRecrawlUnknownID(t *testing.T) {
	t.Parallel()

	stack := newTestStack(t, config.Config{})

	resp, err := http.Get(stack.server.URL + "/recrawl/does-not-exist")
	require.NoError(t, err)
	out := decodeBody(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Crawl ID not found.", out["error"])
}

func TestAPIKeyGate(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	stack := newTestStack(t, cfg)

	resp, err := http.Post(stack.server.URL+"/crawl", "application/json",
		strings.NewReader(`{"urls": ["https://example.com"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, stack.server.URL+"/crawl",
		strings.NewReader(`{"urls": ["https://example.com"]}`))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Health and metrics stay open without a key.
	resp, err = http.Get(stack.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
