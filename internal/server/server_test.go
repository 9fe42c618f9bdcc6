package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmonitor/internal/metrics"
	"netmonitor/internal/models"
	"netmonitor/internal/storage"
)

var (
	testSite = models.HTTPTarget("https://example.com")
	testPort = models.PortTarget("example.com", 443)
	testBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newTestSeries(t *testing.T, cycles int) *storage.Series {
	t.Helper()
	series := storage.NewSeriesWithID("run-test", []models.Target{testSite, testPort})
	for i := 1; i <= cycles; i++ {
		appendSample(t, series, i)
	}
	return series
}

func appendSample(t *testing.T, series *storage.Series, cycle int) models.Sample {
	t.Helper()
	sample := models.Sample{
		Cycle:     cycle,
		Timestamp: testBase.Add(time.Duration(cycle) * time.Minute),
		Measurements: map[string]models.Measurement{
			testSite.ID(): models.Latency(float64(10 * cycle)),
			testPort.ID(): models.Reachability(true),
		},
	}
	require.NoError(t, series.Append(sample))
	return sample
}

func getJSON(t *testing.T, handler http.Handler, path string, out any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestIndexServed(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 0))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Network monitor")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 0))
	var empty statusResponse
	getJSON(t, srv.Handler(), "/api/status", &empty)
	assert.Equal(t, "run-test", empty.RunID)
	assert.Len(t, empty.Targets, 2)
	assert.Nil(t, empty.Sample)

	srv = New("127.0.0.1:0", newTestSeries(t, 3))
	var resp statusResponse
	getJSON(t, srv.Handler(), "/api/status", &resp)
	require.NotNil(t, resp.Sample)
	assert.Equal(t, 3, resp.Sample.Cycle)
	assert.Equal(t, models.Latency(30), resp.Sample.Measurement(testSite))
}

func TestHistoryEndpointLimit(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 5))

	var all []models.Sample
	getJSON(t, srv.Handler(), "/api/history", &all)
	assert.Len(t, all, 5)

	var tail []models.Sample
	getJSON(t, srv.Handler(), "/api/history?limit=2", &tail)
	require.Len(t, tail, 2)
	assert.Equal(t, 4, tail[0].Cycle)
	assert.Equal(t, 5, tail[1].Cycle)

	var bad []models.Sample
	getJSON(t, srv.Handler(), "/api/history?limit=abc", &bad)
	assert.Len(t, bad, 5)
}

func TestSummaryEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 2))

	var summary metrics.Summary
	getJSON(t, srv.Handler(), "/api/summary", &summary)
	assert.Equal(t, 2, summary.Samples)
	require.Len(t, summary.Targets, 2)
	assert.Equal(t, 100.0, summary.Targets[0].AvailabilityPercent)
	require.NotNil(t, summary.Targets[0].Latency)
	assert.Equal(t, 15.0, summary.Targets[0].Latency.AvgMS)
}

func TestTimelineEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 3))
	srv.now = func() time.Time { return testBase.Add(10 * time.Minute) }

	var resp timelineResponse
	getJSON(t, srv.Handler(), "/api/timeline?points=5", &resp)
	assert.Equal(t, testBase.Add(time.Minute), resp.RangeStart)
	assert.Equal(t, testBase.Add(10*time.Minute), resp.RangeEnd)
	require.Len(t, resp.Targets, 2)
	assert.Len(t, resp.Targets[0].Timeline, 5)
	assert.Equal(t, "state-success", resp.Targets[0].Timeline[0].ClassName)
}

func TestLiveSocketPushesSamples(t *testing.T) {
	series := newTestSeries(t, 1)
	srv := New("127.0.0.1:0", series)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial liveMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, messageSample, initial.Type)
	assert.Equal(t, "run-test", initial.RunID)
	require.NotNil(t, initial.Sample)
	assert.Equal(t, 1, initial.Sample.Cycle)
	require.Equal(t, 1, srv.hub.count())

	appendSample(t, series, 2)
	require.NoError(t, srv.Export(context.Background(), series.Snapshot()))

	var pushed liveMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	require.NotNil(t, pushed.Sample)
	assert.Equal(t, 2, pushed.Sample.Cycle)
}

func TestLiveSocketRejectsForeignOrigin(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 0))
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExportWithoutSamplesIsNoop(t *testing.T) {
	srv := New("127.0.0.1:0", newTestSeries(t, 0))
	assert.NoError(t, srv.Export(context.Background(), storage.Snapshot{}))
	assert.Equal(t, "dashboard", srv.Name())
}
