package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/history-river/pkg/store"
)

func TestListDynasties(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/dynasties", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])

	data := body["data"].([]any)
	require.Len(t, data, 3)
	assert.Equal(t, map[string]any{
		"id":          "tang",
		"name":        "Tang",
		"chineseName": "唐",
		"startYear":   float64(618),
		"endYear":     float64(907),
		"color":       "#c0392b",
		"description": "盛唐",
		"duration":    float64(289),
		"eventCount":  float64(1),
	}, data[1])
	assert.Equal(t, "xia", data[0].(map[string]any)["id"])

	assert.Equal(t, map[string]any{
		"current_page":   float64(1),
		"total_pages":    float64(1),
		"total_items":    float64(3),
		"items_per_page": float64(50),
		"has_next":       false,
		"has_previous":   false,
	}, body["pagination"])
}

func TestListDynasties_Pagination(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	tests := []struct {
		query    string
		wantPage float64
		wantIDs  []string
	}{
		{"?per_page=2", 1, []string{"xia", "tang"}},
		{"?per_page=2&page=2", 2, []string{"song"}},
		{"?per_page=2&page=99", 2, []string{"song"}},
		{"?per_page=2&page=0", 1, []string{"xia", "tang"}},
		{"?per_page=2&page=abc", 1, []string{"xia", "tang"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/dynasties"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			pagination := body["pagination"].(map[string]any)
			assert.Equal(t, tt.wantPage, pagination["current_page"])
			assert.Equal(t, float64(2), pagination["total_pages"])

			var ids []string
			for _, d := range body["data"].([]any) {
				ids = append(ids, d.(map[string]any)["id"].(string))
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	for _, bad := range []string{"0", "-1", "abc"} {
		rec := env.do(t, http.MethodGet, "/api/dynasties?per_page="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "per_page=%s", bad)
		assert.Equal(t, false, decode(t, rec)["success"])
	}
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	tests := []struct {
		query      string
		wantTitles []string
	}{
		{"", []string{"夏朝建立", "安史之乱", "交子出现", "千年虫"}},
		{"?year_from=0&year_to=1500", []string{"安史之乱", "交子出现"}},
		{"?type=war", []string{"安史之乱"}},
		{"?type=unknown", nil},
		{"?importance=4", []string{"交子出现"}},
		{"?dynasty_id=xia", []string{"夏朝建立"}},
		{"?search=" + url.QueryEscape("盛转衰"), []string{"安史之乱"}},
		{"?per_page=1&page=2", []string{"安史之乱"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/events"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var titles []string
			for _, e := range decode(t, rec)["data"].([]any) {
				titles = append(titles, e.(map[string]any)["title"].(string))
			}
			assert.Equal(t, tt.wantTitles, titles)
		})
	}

	t.Run("fields", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/events?type=war", "")
		event := decode(t, rec)["data"].([]any)[0].(map[string]any)
		assert.Equal(t, "war", event["type"])
		assert.Equal(t, "战争", event["typeDisplay"])
		assert.Equal(t, "①极其重要", event["importanceDisplay"])
		assert.Equal(t, "historyData.ts", event["sourceReference"])
		assert.Equal(t, map[string]any{"id": "tang", "chineseName": "唐", "name": "Tang"}, event["dynasty"])
		assert.NotContains(t, event, "createdAt")
	})

	t.Run("no dynasty", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/events?type=science", "")
		event := decode(t, rec)["data"].([]any)[0].(map[string]any)
		assert.Contains(t, event, "dynasty")
		assert.Nil(t, event["dynasty"])
	})

	t.Run("invalid filter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/events?year_from=abc", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "year_from must be an integer", decode(t, rec)["error"])
	})
}

func TestGetEvent(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	events, err := env.store.ListEvents(context.Background(), &store.FindEvent{Search: "安史"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	id := events[0].ID

	rec := env.do(t, http.MethodGet, "/api/events/"+strconv.FormatInt(id, 10)+"/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	event := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "安史之乱", event["title"])
	assert.Equal(t, map[string]any{
		"id":          "tang",
		"chineseName": "唐",
		"name":        "Tang",
		"startYear":   float64(618),
		"endYear":     float64(907),
	}, event["dynasty"])
	_, err = time.Parse(time.RFC3339Nano, event["createdAt"].(string))
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339Nano, event["updatedAt"].(string))
	assert.NoError(t, err)

	for _, missing := range []string{"999999", "abc"} {
		rec := env.do(t, http.MethodGet, "/api/events/"+missing, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, map[string]any{"success": false, "error": "Event not found"}, decode(t, rec))
	}
}

func TestTimeline(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/timeline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)

	dynasties := data["dynasties"].([]any)
	require.Len(t, dynasties, 3)
	assert.Equal(t, map[string]any{
		"id":        "tang",
		"name":      "唐",
		"startYear": float64(618),
		"endYear":   float64(907),
		"color":     "#c0392b",
		"power":     float64(73),
	}, dynasties[1])

	events := data["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, map[string]any{
		"id":         events[1].(map[string]any)["id"],
		"year":       float64(755),
		"title":      "安史之乱",
		"type":       "war",
		"importance": float64(1),
		"dynastyId":  "tang",
	}, events[1])

	stats := data["stats"].(map[string]any)
	assert.Equal(t, float64(3), stats["totalDynasties"])
	assert.Equal(t, float64(2), stats["totalEvents"])
	assert.Equal(t, map[string]any{
		"war":      map[string]any{"display": "战争", "count": float64(1)},
		"culture":  map[string]any{"display": "文化", "count": float64(1)},
		"politics": map[string]any{"display": "政治", "count": float64(1)},
		"science":  map[string]any{"display": "科技", "count": float64(1)},
	}, stats["eventTypes"])
	importance := stats["importanceStats"].(map[string]any)
	assert.Len(t, importance, 5)
	assert.Equal(t, map[string]any{"display": "③重要", "count": float64(0)}, importance["3"])
	assert.Equal(t, map[string]any{"display": "⑤次要", "count": float64(1)}, importance["5"])
}

func TestDynastyPower(t *testing.T) {
	tests := []struct {
		id         string
		start, end int
		want       int
	}{
		{"tang", 618, 907, 73},
		{"ming", 1368, 1644, 72},
		{"qing", 1636, 1912, 72},
		{"song", 960, 1279, 66},
		{"sui", 581, 618, 38},
		{"qin", -221, -207, 31},
		{"zhou_west", -1046, -771, 57},
		{"xia", -2070, -1600, 50},
		{"xin", 9, 23, 26},
		{"prc", 1949, 2025, 52},
		{"han_west", -202, 8, 66},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			d := &store.Dynasty{ID: tt.id, StartYear: tt.start, EndYear: tt.end}
			assert.Equal(t, tt.want, DynastyPower(d))
		})
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, floorDiv(29, 10))
	assert.Equal(t, -1, floorDiv(-5, 10))
	assert.Equal(t, -2, floorDiv(-20, 10))
	assert.Equal(t, 0, floorDiv(0, 10))
}

func TestRiverPins(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/riverpins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{
		map[string]any{"year": float64(-2000), "jobId": "job-a", "title": "夏商周", "doubanRating": nil},
		map[string]any{"year": float64(744), "jobId": "job-a", "title": "长安十二时辰", "doubanRating": 8.3},
		map[string]any{"year": float64(1100), "jobId": "job-b", "title": "清明上河图", "doubanRating": nil},
	}, body["data"])

	rec = env.do(t, http.MethodGet, "/api/riverpins?job_id=job-b", "")
	require.Len(t, decode(t, rec)["data"], 1)
}

func TestListPinsLegacy(t *testing.T) {
	env := newTestEnv(t, unlimited())
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/pins/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["count"])

	results := body["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "p3", first["id"])
	assert.Equal(t, "job-a", first["job_id"])
	assert.Equal(t, float64(-2000), first["year"])
	_, err := time.Parse(time.RFC3339Nano, first["created_at"].(string))
	assert.NoError(t, err)
}
