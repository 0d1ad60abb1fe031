package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveItem("success", 2*time.Second)
	r.ObserveItem("success", time.Second)
	r.ObserveItem("failed", 0)
	r.ObserveCollection("created")
	r.ObserveRequest("productCreate", "ok", 100*time.Millisecond)
	r.ObserveRequest("productCreate", "throttled", 50*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, r, "uploader_items_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, r, "uploader_items_total", map[string]string{"status": "failed"}))
	assert.Equal(t, 1.0, counterValue(t, r, "uploader_collections_total", map[string]string{"status": "created"}))
	assert.Equal(t, 1.0, counterValue(t, r, "uploader_remote_requests_total", map[string]string{"operation": "productCreate", "outcome": "throttled"}))
}

func TestRecorderWriteFile(t *testing.T) {
	r := New()
	r.ObserveItem("success", time.Second)

	path := filepath.Join(t.TempDir(), "uploader.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `uploader_items_total{status="success"} 1`)
	assert.Contains(t, string(data), "uploader_item_duration_seconds_count 1")
}
