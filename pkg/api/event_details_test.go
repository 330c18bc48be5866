package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/generator"
)

func TestEventDetails_MissThenHit(t *testing.T) {
	env := newTestEnv(t, unlimited())
	body := `{"year": 755, "event_title": "安史之乱", "context": "唐朝由盛转衰"}`

	rec := env.do(t, http.MethodPost, "/api/event-details", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{
		"text":        env.gen.content,
		"cached":      false,
		"year":        float64(755),
		"event_title": "安史之乱",
	}, decode(t, rec))

	// The context differs but does not take part in the key.
	rec = env.do(t, http.MethodPost, "/api/event-details/", `{"year": "755", "event_title": "安史之乱", "context": "other"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["cached"])
	assert.Equal(t, int32(1), env.gen.calls.Load())

	entry, err := env.store.GetCacheEntry(context.Background(), cache.DeriveKey("安史之乱", 755))
	require.NoError(t, err)
	assert.Equal(t, "唐朝由盛转衰", entry.Context)
}

func TestEventDetails_YearOverview(t *testing.T) {
	env := newTestEnv(t, unlimited())

	rec := env.do(t, http.MethodPost, "/api/event-details", `{"year": -2070}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "", body["event_title"])
	assert.Equal(t, float64(-2070), body["year"])

	_, err := env.store.GetCacheEntry(context.Background(), cache.DeriveKey("", -2070))
	assert.NoError(t, err)
}

func TestEventDetails_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "No data provided"},
		{"empty object", "{}", "No data provided"},
		{"null body", "null", "No data provided"},
		{"missing year", `{"context": "x"}`, "Missing required parameter: year"},
		{"null year", `{"year": null}`, "Missing required parameter: year"},
		{"non-numeric string", `{"year": "abc"}`, "Invalid year format, must be integer"},
		{"fractional number", `{"year": 755.5}`, "Invalid year format, must be integer"},
		{"fractional string", `{"year": "755.0"}`, "Invalid year format, must be integer"},
		{"bool", `{"year": true}`, "Invalid year format, must be integer"},
		{"object", `{"year": {"v": 1}}`, "Invalid year format, must be integer"},
		{"malformed json", `{"year": `, "Invalid JSON body"},
		{"array body", `[755]`, "Invalid JSON body"},
		{"numeric title", `{"year": 755, "event_title": 1}`, "event_title must be a string"},
		{"numeric context", `{"year": 755, "context": 1}`, "context must be a string"},
	}

	env := newTestEnv(t, unlimited())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/event-details", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, map[string]any{"error": tt.wantMsg}, decode(t, rec))
		})
	}
	assert.Equal(t, int32(0), env.gen.calls.Load())
}

func TestEventDetails_AcceptedYears(t *testing.T) {
	tests := []struct {
		body string
		want float64
	}{
		{`{"year": 755}`, 755},
		{`{"year": 755.0}`, 755},
		{`{"year": " -221 "}`, -221},
		{`{"year": "+960"}`, 960},
		{`{"year": 0}`, 0},
	}

	env := newTestEnv(t, unlimited())
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/event-details", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode(t, rec)["year"])
		})
	}
}

func TestEventDetails_Form(t *testing.T) {
	env := newTestEnv(t, unlimited())

	form := url.Values{"year": {"1000"}, "event_title": {"交子出现"}}
	req := httptest.NewRequest(http.MethodPost, "/api/event-details", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(1000), body["year"])
	assert.Equal(t, "交子出现", body["event_title"])
}

func TestEventDetails_FetchFailure(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.gen.err = &generator.Error{Class: generator.ErrorClassStatus, StatusCode: 502, Message: "bad gateway"}

	rec := env.do(t, http.MethodPost, "/api/event-details", `{"year": 755}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{
		"error": "Failed to fetch from generator API: generator status error (status 502): bad gateway",
	}, decode(t, rec))

	// Nothing was stored, so the next call fetches again.
	env.gen.err = nil
	rec = env.do(t, http.MethodPost, "/api/event-details", `{"year": 755}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["cached"])
	assert.Equal(t, int32(2), env.gen.calls.Load())
}

func TestEventDetails_StoreFailure(t *testing.T) {
	env := newTestEnv(t, unlimited())
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodPost, "/api/event-details", `{"year": 755}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg, _ := decode(t, rec)["error"].(string)
	assert.True(t, strings.HasPrefix(msg, "Internal server error: "), msg)
	assert.Equal(t, int32(0), env.gen.calls.Load())
}

func TestEventDetails_RateLimited(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for _, body := range []string{`{"year": 755}`, `{"year": 960}`} {
		rec := env.do(t, http.MethodPost, "/api/event-details", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/event-details", `{"year": 1127}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, int32(2), env.gen.calls.Load())

	// Cached summaries are served even with the budget spent.
	for i := 0; i < 3; i++ {
		rec = env.do(t, http.MethodPost, "/api/event-details", `{"year": 755}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["cached"])
		assert.Equal(t, "天宝十四载，安禄山起兵范阳。", body["text"])
	}
	assert.Equal(t, int32(2), env.gen.calls.Load())

	// Only event details are limited.
	rec = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventDetailStats(t *testing.T) {
	env := newTestEnv(t, unlimited())
	ctx := context.Background()
	for _, body := range []string{
		`{"year": 755, "event_title": "安史之乱"}`,
		`{"year": 755}`,
		`{"year": 1000, "event_title": "交子出现"}`,
	} {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/event-details", body).Code)
	}
	_, err := env.store.SoftDeleteCacheEntry(ctx, cache.DeriveKey("安史之乱", 755))
	require.NoError(t, err)

	t.Run("by year", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/event-details/stats?year=755", "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, float64(2), data["total"])
		assert.Equal(t, float64(1), data["live"])
		assert.Equal(t, float64(1), data["deleted"])
		assert.Equal(t, float64(1), data["year_overviews"])
		assert.Equal(t, float64(755), data["last_updated_year"])
	})

	t.Run("by title", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/event-details/stats?event_title="+url.QueryEscape("交子出现"), "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, float64(1), data["total"])
		assert.Equal(t, float64(0), data["year_overviews"])
	})

	t.Run("empty", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/event-details/stats?year=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]any)
		assert.Equal(t, float64(0), data["total"])
		assert.Nil(t, data["last_updated_at"])
	})

	t.Run("invalid year", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/event-details/stats?year=x", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestParseYear(t *testing.T) {
	_, err := parseYear(int64(1))
	assert.True(t, errors.Is(err, errInvalidYear))
}
