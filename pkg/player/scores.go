package player

const (
	ScoreMin     = 0.0
	ScoreMax     = 100.0
	AlignmentMin = -100.0
	AlignmentMax = 100.0
)

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// ClampScores forces every scalar score back into its range.
func (s *State) ClampScores() {
	s.IdentityCoherence = Clamp(s.IdentityCoherence, ScoreMin, ScoreMax)
	s.Instability = Clamp(s.Instability, ScoreMin, ScoreMax)
	s.EchoTrace = Clamp(s.EchoTrace, ScoreMin, ScoreMax)
	s.DecisionQualityScore = Clamp(s.DecisionQualityScore, ScoreMin, ScoreMax)
	s.BreakthroughMeter = Clamp(s.BreakthroughMeter, ScoreMin, ScoreMax)
	s.Notoriety = Clamp(s.Notoriety, ScoreMin, ScoreMax)
	s.Alignment = Clamp(s.Alignment, AlignmentMin, AlignmentMax)
	s.FateBuffer = Clamp(s.FateBuffer, ScoreMin, ScoreMax)
	if s.PityCounter < 0 {
		s.PityCounter = 0
	}
}

// ScoresInRange reports whether every scalar score is inside its range.
func (s *State) ScoresInRange() bool {
	in := func(v, lo, hi float64) bool { return v >= lo && v <= hi }
	return in(s.IdentityCoherence, ScoreMin, ScoreMax) &&
		in(s.Instability, ScoreMin, ScoreMax) &&
		in(s.EchoTrace, ScoreMin, ScoreMax) &&
		in(s.DecisionQualityScore, ScoreMin, ScoreMax) &&
		in(s.BreakthroughMeter, ScoreMin, ScoreMax) &&
		in(s.Notoriety, ScoreMin, ScoreMax) &&
		in(s.Alignment, AlignmentMin, AlignmentMax) &&
		in(s.FateBuffer, ScoreMin, ScoreMax)
}
