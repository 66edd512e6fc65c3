package metrics

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.NotNil(t, m.GetCounter())
	return m.GetCounter().GetValue()
}

func TestNewPusher(t *testing.T) {
	_, err := NewPusher("", "zupload", "cte-hr")
	require.Error(t, err)

	p, err := NewPusher("http://pushgateway:9091", "", "cte-hr")
	require.NoError(t, err)
	require.Equal(t, "zupload", p.job)
}

func TestObserveAndAdd(t *testing.T) {
	p, err := NewPusher("http://pushgateway:9091", "zupload", "")
	require.NoError(t, err)

	p.ObserveStage("try_ingest", "ok", 2*time.Second)
	p.ObserveStage("try_ingest", "ok", time.Second)
	p.ObserveStage("upload_data", "failed", time.Second)
	p.AddRecords("archived", 3)
	p.AddRecords("archived", 0)

	require.Equal(t, 2.0, counterValue(t, p.stageCounter.WithLabelValues("try_ingest", "ok")))
	require.Equal(t, 1.0, counterValue(t, p.stageCounter.WithLabelValues("upload_data", "failed")))
	require.Equal(t, 3.0, counterValue(t, p.recordCounter.WithLabelValues("archived")))

	m := &dto.Metric{}
	summary, ok := p.stageDuration.WithLabelValues("try_ingest").(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, summary.Write(m))
	require.Equal(t, uint64(2), m.GetSummary().GetSampleCount())
	require.InDelta(t, 3.0, m.GetSummary().GetSampleSum(), 1e-9)
}

func TestPush(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPusher(srv.URL, "zupload", "cte-hr")
	require.NoError(t, err)
	p.ObserveStage("archive_json", "ok", time.Millisecond)
	p.AddRecords("json_built", 1)

	require.NoError(t, p.Push(context.Background()))
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/metrics/job/zupload/reason/cte-hr", gotPath)
	require.True(t, bytes.Contains(gotBody, []byte("zupload_records_total")))
	require.True(t, bytes.Contains(gotBody, []byte("zupload_stage_total")))
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewPusher(srv.URL, "zupload", "")
	require.NoError(t, err)
	require.Error(t, p.Push(context.Background()))
}
