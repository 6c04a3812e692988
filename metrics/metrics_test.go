package metrics

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/novanet/novanet/log"
)

func TestStartServesMetrics(t *testing.T) {
	l := Start(":0", nil, nil)
	if l == nil {
		t.Fatal("expected a listener")
	}
	defer l.Close()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", l.Addr().String()))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatal("request to /metrics should succeed")
	}
	_ = resp.Body.Close()
}

func TestThresholdMonitorReportsFailures(t *testing.T) {
	m := NewThresholdMonitor("prefix:0", log.DefaultLogger(), 3)
	m.ReportFailure("peer-a")
	m.ReportFailure("peer-b")
	m.sweep()

	m.UpdateThreshold(1)
	m.ReportFailure("peer-a")
	m.sweep()

	_ = time.Millisecond
}
