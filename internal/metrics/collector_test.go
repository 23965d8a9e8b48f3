package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStats struct{ jobs, subs int }

func (f fakeStats) ActiveJobCount() int  { return f.jobs }
func (f fakeStats) SubscriberCount() int { return f.subs }

func TestCollector(t *testing.T) {
	t.Run("reads_live_stats", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		reg.MustRegister(NewCollector(nil, fakeStats{jobs: 2, subs: 5}))

		expected := `
# HELP whisper_remote_active_jobs Transcriptions currently streaming.
# TYPE whisper_remote_active_jobs gauge
whisper_remote_active_jobs 2
# HELP whisper_remote_live_subscribers_active Current number of live feed subscribers (SSE and websocket).
# TYPE whisper_remote_live_subscribers_active gauge
whisper_remote_live_subscribers_active 5
`
		err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
			"whisper_remote_active_jobs", "whisper_remote_live_subscribers_active")
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("nil_sources_report_zero", func(t *testing.T) {
		reg := prometheus.NewPedanticRegistry()
		reg.MustRegister(NewCollector(nil, nil))

		n, err := testutil.GatherAndCount(reg)
		if err != nil {
			t.Fatalf("gather: %v", err)
		}
		if n != 5 {
			t.Errorf("metric count = %d, want 5", n)
		}
	})
}
