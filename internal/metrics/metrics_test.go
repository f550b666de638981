package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestObserveDecision(t *testing.T) {
	before := testutil.ToFloat64(GateDecisions.WithLabelValues("auto_deploy"))
	ObserveDecision(gate.Decide(0.02, 0.95))
	after := testutil.ToFloat64(GateDecisions.WithLabelValues("auto_deploy"))
	if after-before != 1 {
		t.Fatalf("expected auto_deploy counter to increase by 1, got %v", after-before)
	}
}

func TestObserveReload(t *testing.T) {
	failures := testutil.ToFloat64(RegistryReloads.WithLabelValues("failure"))
	ObserveReload(0.5, errors.New("boom"))
	if got := testutil.ToFloat64(RegistryReloads.WithLabelValues("failure")); got != failures+1 {
		t.Fatalf("expected failure counter %v, got %v", failures+1, got)
	}

	ObserveReload(0.91, nil)
	if got := testutil.ToFloat64(DeployedAccuracy); got != 0.91 {
		t.Fatalf("expected accuracy gauge 0.91, got %v", got)
	}
}
