package nextfit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"billing_notifier/internal/domain/alias"
	"billing_notifier/internal/domain/receivable"
	"billing_notifier/internal/infra/nextfit"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newClient(srv *httptest.Server, pageSize int, delay time.Duration, retries int, sleeper *sleepRecorder) *nextfit.Client {
	return newClientWithLogger(srv, pageSize, delay, retries, sleeper, testLogger())
}

func newClientWithLogger(srv *httptest.Server, pageSize int, delay time.Duration, retries int, sleeper *sleepRecorder, logger *logrus.Entry) *nextfit.Client {
	return nextfit.NewClient(nextfit.Options{
		BaseURL:   srv.URL,
		APIKey:    "secret",
		Version:   "1",
		PageSize:  pageSize,
		PageDelay: delay,
		Policy:    nextfit.NewRetryPolicy(retries, time.Millisecond),
		Sleep:     sleeper.sleep,
	}, logger)
}

func items(n, offset int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": offset + i + 1}
	}
	return out
}

func TestClient_FetchAll_ShortPageTerminates(t *testing.T) {
	sizes := []int{30, 30, 12}
	var requests int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&requests, 1)) - 1
		if n >= len(sizes) {
			t.Errorf("unexpected extra page request %d", n+1)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("Skip"))
		assert.Equal(t, n*30, skip)
		_ = json.NewEncoder(w).Encode(items(sizes[n], skip))
	}))
	defer srv.Close()

	sleeper := &sleepRecorder{}
	client := newClient(srv, 30, 0, 3, sleeper)

	all, err := client.FetchAll(context.Background(), nextfit.Query{Path: nextfit.ReceivablesPath, ListKeys: []string{"data"}})
	require.NoError(t, err)
	assert.Len(t, all, 72)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Empty(t, sleeper.calls, "receivables must not wait between pages")
}

func TestClient_EachCustomerPage_FlagTakesPrecedence(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, nextfit.CustomersPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "1", r.URL.Query().Get("version"))
		assert.Equal(t, "2", r.URL.Query().Get("Take"))

		n := atomic.AddInt32(&requests, 1)
		switch n {
		case 1:
			// short page, but the flag says there is more
			fmt.Fprint(w, `{"items": [{"id": 1}], "temProximaPagina": true}`)
		case 2:
			// full page, but the flag says it is the last one
			fmt.Fprint(w, `{"items": [{"id": 2}, {"id": 3}], "temProximaPagina": false}`)
		default:
			t.Errorf("unexpected request %d", n)
		}
	}))
	defer srv.Close()

	sleeper := &sleepRecorder{}
	client := newClient(srv, 2, time.Second, 0, sleeper)

	var got []alias.Record
	err := client.EachCustomerPage(context.Background(), func(page []alias.Record) error {
		got = append(got, page...)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.calls)
}

func TestClient_EmptyPageTerminates(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			_ = json.NewEncoder(w).Encode(items(2, 0))
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	all, err := newClient(srv, 2, 0, 0, &sleepRecorder{}).FetchAll(context.Background(), nextfit.Query{Path: "/x"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_RetriesRetryableStatus(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(items(1, 0))
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	sleeper := &sleepRecorder{}
	all, err := newClientWithLogger(srv, 30, 0, 3, sleeper, logrus.NewEntry(logger)).FetchAll(context.Background(), nextfit.Query{Path: "/x"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Empty(t, sleeper.calls, "backoff is waited out by the transport")

	var waits []any
	for _, e := range hook.AllEntries() {
		if e.Message == "Retrying request" {
			waits = append(waits, e.Data["wait"])
		}
	}
	assert.Equal(t, []any{"1ms", "2ms"}, waits)
}

func TestClient_CancelledContextStopsRetrying(t *testing.T) {
	var requests int32
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(srv, 30, 0, 5, &sleepRecorder{}).FetchAll(ctx, nextfit.Query{Path: "/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, nextfit.ErrRetriesExhausted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClient_RetriesExhaustedKeepsEarlierPages(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			_ = json.NewEncoder(w).Encode(items(2, 0))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	all, err := newClient(srv, 2, 0, 2, &sleepRecorder{}).FetchAll(context.Background(), nextfit.Query{Path: "/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, nextfit.ErrRetriesExhausted)
	assert.Len(t, all, 2)
	assert.Equal(t, int32(4), atomic.LoadInt32(&requests))
}

func TestClient_NonRetryableStatusFailsFast(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "invalid key"}`)
	}))
	defer srv.Close()

	_, err := newClient(srv, 30, 0, 3, &sleepRecorder{}).FetchAll(context.Background(), nextfit.Query{Path: "/x"})
	var statusErr *nextfit.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "invalid key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClient_FetchReceivables_SendsWindowBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, nextfit.ReceivablesPath, r.URL.Path)
		assert.Equal(t, "2024-03-14T00:00:00", r.URL.Query().Get("DataVencimentoInicio"))
		assert.Equal(t, "2024-03-14T23:59:59", r.URL.Query().Get("DataVencimentoFim"))
		fmt.Fprint(w, `{"contas": [{"CodigoCliente": 1, "Status": "Aberto"}]}`)
	}))
	defer srv.Close()

	windows := receivable.Windows(time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC))
	got, err := newClient(srv, 30, 0, 0, &sleepRecorder{}).FetchReceivables(context.Background(), windows[0])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, json.Number("1"), got[0]["CodigoCliente"])
}

func TestClient_CallbackErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(items(2, 0))
	}))
	defer srv.Close()

	boom := fmt.Errorf("boom")
	err := newClient(srv, 2, 0, 0, &sleepRecorder{}).Each(context.Background(), nextfit.Query{Path: "/x"}, func([]alias.Record) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
