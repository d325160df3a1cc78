package control_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-bench/control"
)

func TestMetrics_RegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := control.NewMetrics(reg, "uring")
	m.Accepts.Inc()
	m.Accepts.Inc()
	m.Completions.WithLabelValues("recv").Add(3)
	m.LiveConnections.Set(5)

	if got := testutil.ToFloat64(m.Accepts); got != 2 {
		t.Errorf("accepts = %v", got)
	}
	if got := testutil.ToFloat64(m.Completions.WithLabelValues("recv")); got != 3 {
		t.Errorf("recv completions = %v", got)
	}
	n, err := testutil.GatherAndCount(reg, "hioload_live_connections")
	if err != nil || n != 1 {
		t.Errorf("live_connections series = %d, %v", n, err)
	}
}

func TestMetrics_NilRegistererLeavesUnregistered(t *testing.T) {
	m := control.NewMetrics(nil, "epoll")
	m.Requests.Inc()
	if testutil.ToFloat64(m.Requests) != 1 {
		t.Error("unregistered counter did not count")
	}
	// Registering twice under the same registry would panic; a second
	// variant on a fresh registry must be independent.
	control.NewMetrics(prometheus.NewRegistry(), "epoll")
}

func TestDebugProbes_DumpState(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("a", func() any { return 1 })
	dp.RegisterProbe("a", func() any { return 2 })
	control.RegisterPlatformProbes(dp)

	state := dp.DumpState()
	if state["a"] != 2 {
		t.Errorf("probe a = %v", state["a"])
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Error("platform probes missing")
	}
}

func TestConfigStore_Reload(t *testing.T) {
	cs := control.NewConfigStore()
	var got map[string]any
	cs.OnReload(func(s map[string]any) { got = s })
	cs.SetConfig(map[string]any{"log-level": "debug"})
	cs.SetConfig(map[string]any{"addr": "127.0.0.1:9000"})
	if got["log-level"] != "debug" || got["addr"] != "127.0.0.1:9000" {
		t.Errorf("listener snapshot %v", got)
	}
	snap := cs.GetSnapshot()
	snap["addr"] = "mutated"
	if cs.GetSnapshot()["addr"] == "mutated" {
		t.Error("snapshot aliases store")
	}
}

func TestHandler_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := control.NewMetrics(reg, "goroutine")
	m.Responses.Add(7)
	dp := control.NewDebugProbes()
	dp.RegisterProbe("engine.live", func() any { return 3 })
	srv := httptest.NewServer(control.NewHandler(reg, dp))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `hioload_responses_total{server="goroutine"} 7`) {
		t.Errorf("metrics body missing responses counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/debug/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var state map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state["engine.live"] != float64(3) {
		t.Errorf("debug state %v", state)
	}
}
