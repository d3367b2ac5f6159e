package progress

// Ratio is progressed/total clamped to [0,1]. A non-positive total reads as no progress.
func Ratio(progressed, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return clamp01(progressed / total)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Timer accrues simulated seconds against a target duration.
type Timer struct {
	Elapsed  float64
	Duration float64
}

// Add accrues dt and reports whether the target was reached.
func (t *Timer) Add(dt float64) bool {
	t.Elapsed += dt
	return t.Reached()
}

// Reached is true once Elapsed covers Duration. A non-positive Duration is reached immediately.
func (t *Timer) Reached() bool { return t.Elapsed >= t.Duration }

func (t *Timer) Reset()         { t.Elapsed = 0 }
func (t *Timer) Ratio() float64 { return Ratio(t.Elapsed, t.Duration) }
