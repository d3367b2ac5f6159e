package nav

import (
	"testing"

	"factorysim.ai/internal/sim/model"
)

func TestStraight_ArrivesAndStops(t *testing.T) {
	n := NewStraight()
	if !n.Stopped() {
		t.Fatalf("fresh navigator should be stopped")
	}
	n.SetDestination(model.Vec3{X: 3})

	p := model.Zero
	p = n.Step(p, 2, 0.5)
	if got := n.RemainingDistance(p); got != 2 {
		t.Fatalf("remaining=%v want 2", got)
	}
	p = n.Step(p, 2, 0.5)
	p = n.Step(p, 2, 0.5)
	if p != (model.Vec3{X: 3}) {
		t.Fatalf("pos=%+v want arrival", p)
	}
	n.Stop()
	if n.Step(p, 2, 0.5) != p {
		t.Fatalf("stopped navigator moved")
	}
}
