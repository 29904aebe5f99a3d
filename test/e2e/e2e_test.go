// test/e2e/e2e_test.go
//
// End-to-end tests: a real analytics.Client against an in-process fake of
// the remote analytics service, wrapped by the real cache/fallback layer.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-insights/internal/analytics"
	"fleet-insights/internal/cache"
	"fleet-insights/internal/common/auth"
	httpclient "fleet-insights/internal/common/http"
	"fleet-insights/internal/common/logger"
	"fleet-insights/internal/models"
)

// fakeService implements the remote protocol: create -> submit -> status,
// with a configurable number of IN_PROGRESS polls before DONE.
type fakeService struct {
	mu             sync.Mutex
	createCalls    int
	submitCalls    int
	statusCalls    int
	pollsUntilDone int
	failCreate     bool
}

type envelope struct {
	Service        string                 `json:"service"`
	FunctionName   string                 `json:"functionName"`
	IsCustomerData bool                   `json:"isCustomerData"`
	Params         map[string]interface{} `json:"params"`
}

func (s *fakeService) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.IsCustomerData, "every call must force the customer-data scope")

		s.mu.Lock()
		defer s.mu.Unlock()

		switch req.FunctionName {
		case "create":
			s.createCalls++
			if s.failCreate {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			writeResults(w, []map[string]interface{}{{"chat_id": "chat-e2e"}})
		case "submit":
			s.submitCalls++
			writeResults(w, []map[string]interface{}{{"message_group_id": "mg-e2e"}})
		case "status":
			s.statusCalls++
			if s.statusCalls <= s.pollsUntilDone {
				writeResults(w, []map[string]interface{}{{
					"message_group": map[string]interface{}{
						"status": map[string]interface{}{"status": "IN_PROGRESS"},
					},
				}})
				return
			}
			writeResults(w, []map[string]interface{}{{
				"message_group": map[string]interface{}{
					"status": map[string]interface{}{"status": "DONE"},
					"messages": []interface{}{
						map[string]interface{}{
							"columns": []interface{}{"vehicle", "trips", "distance_km"},
						},
						map[string]interface{}{
							"preview_rows": []interface{}{
								map[string]interface{}{"vehicle": "TRK-104", "trips": 12.0, "distance_km": 340.2},
								map[string]interface{}{"vehicle": "TRK-112", "trips": 9.0, "distance_km": 275.8},
								map[string]interface{}{"vehicle": "VAN-031", "trips": 15.0, "distance_km": 198.4},
							},
							"total_row_count": float64(3),
						},
					},
				},
			}})
		default:
			http.Error(w, fmt.Sprintf("unknown function %q", req.FunctionName), http.StatusBadRequest)
		}
	}
}

func writeResults(w http.ResponseWriter, results []map[string]interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result": map[string]interface{}{
			"apiResult": map[string]interface{}{
				"results": results,
			},
		},
	})
}

func newE2EClient(t *testing.T, baseURL string) *analytics.Client {
	caller := analytics.NewHTTPCaller(baseURL, "fleet-history", httpclient.NewClient(5*time.Second))
	return analytics.NewClient(analytics.Config{
		CreateAttempts:   3,
		CreateRetryDelay: 5 * time.Millisecond,
		Poll: analytics.PollOptions{
			FirstDelay:  time.Millisecond,
			Interval:    time.Millisecond,
			MaxAttempts: 30,
		},
	}, caller, &auth.StaticProvider{Token: "e2e-token"}, logger.NewTestLogger(t), nil)
}

func newE2EFallback(t *testing.T, dir string) *cache.Fallback {
	return cache.New(cache.NewMemoryStore(), cache.Options{
		DefaultTTL:  time.Minute,
		FallbackDir: dir,
	}, logger.NewTestLogger(t))
}

func TestE2E_ColdCacheLiveService(t *testing.T) {
	service := &fakeService{pollsUntilDone: 2}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	client := newE2EClient(t, server.URL)
	fallback := newE2EFallback(t, t.TempDir())

	start := time.Now().UTC()
	insight, fromCache, err := cache.WithFallback(context.Background(), fallback, "vehicle-activity-7d", time.Minute,
		func(ctx context.Context) (*models.Insight, error) {
			return client.Query(ctx, "trips and distance per vehicle over the last 7 days")
		})

	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.NotEmpty(t, insight.ID)
	assert.Len(t, insight.Rows, 3)
	assert.Len(t, insight.Columns, 3)
	assert.False(t, insight.QueriedAt.Before(start))

	assert.Equal(t, 1, service.createCalls)
	assert.Equal(t, 1, service.submitCalls)
	assert.Equal(t, 3, service.statusCalls, "two IN_PROGRESS polls then DONE")
}

func TestE2E_UnreachableServiceFallsBackToFile(t *testing.T) {
	service := &fakeService{failCreate: true}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	dir := t.TempDir()
	canned := &models.Insight{
		ID:       "demo-vehicle-activity-7d",
		Question: "trips and distance per vehicle over the last 7 days",
		Columns:  []string{"vehicle", "trips"},
		Rows: []map[string]interface{}{
			{"vehicle": "TRK-104", "trips": 12.0},
			{"vehicle": "VAN-031", "trips": 15.0},
		},
		QueriedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(canned)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vehicle-activity-7d.json"), data, 0o644))

	client := newE2EClient(t, server.URL)
	fallback := newE2EFallback(t, dir)

	insight, fromCache, err := cache.WithFallback(context.Background(), fallback, "vehicle-activity-7d", time.Minute,
		func(ctx context.Context) (*models.Insight, error) {
			return client.Query(ctx, "trips and distance per vehicle over the last 7 days")
		})

	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, insight.Rows, 2)
	assert.Equal(t, "demo-vehicle-activity-7d", insight.ID)

	// The fallback does not short-circuit the live attempt: session
	// creation still runs its full 3-attempt retry first.
	assert.Equal(t, 3, service.createCalls)
	assert.Equal(t, 0, service.submitCalls)
}

func TestE2E_SecondCallServedFromCache(t *testing.T) {
	service := &fakeService{pollsUntilDone: 0}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	client := newE2EClient(t, server.URL)
	fallback := newE2EFallback(t, t.TempDir())

	query := func() (*models.Insight, bool) {
		insight, fromCache, err := cache.WithFallback(context.Background(), fallback, "vehicle-activity-7d", time.Minute,
			func(ctx context.Context) (*models.Insight, error) {
				return client.Query(ctx, "trips and distance per vehicle over the last 7 days")
			})
		require.NoError(t, err)
		return insight, fromCache
	}

	first, fromCache := query()
	assert.False(t, fromCache)

	second, fromCache := query()
	assert.True(t, fromCache)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, service.createCalls, "cache hit must not touch the service")
}
