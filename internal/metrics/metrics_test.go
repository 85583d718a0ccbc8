package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterSSEClients(t *testing.T) {
	n := 3
	if err := RegisterSSEClients(func() int { return n }); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var got float64 = -1
	for _, f := range families {
		if f.GetName() == "outline_sse_clients" {
			got = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if got != 3 {
		t.Errorf("outline_sse_clients = %v, want 3", got)
	}

	var already prometheus.AlreadyRegisteredError
	if err := RegisterSSEClients(func() int { return 0 }); !errors.As(err, &already) {
		t.Errorf("second register err = %v, want AlreadyRegisteredError", err)
	}
}
