package identity

import (
	"fmt"

	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// Drift labels.
const (
	DriftNone  = ""
	DriftMinor = "minor"
	DriftMajor = "major"
)

// ConfrontationThreshold is the instability at which the story forces the
// protagonist to face the gap between who they were and who they are.
const ConfrontationThreshold = 80.0

// MaxAlignmentShift bounds the alignment change of one chapter.
const MaxAlignmentShift = 10.0

// Delta is the per-chapter change to a player's identity scores.
type Delta struct {
	IdentityCoherence    float64 `json:"identity_coherence"`
	Instability          float64 `json:"instability"`
	EchoTrace            float64 `json:"echo_trace"`
	DecisionQualityScore float64 `json:"decision_quality_score"`
	BreakthroughMeter    float64 `json:"breakthrough_meter"`
	Notoriety            float64 `json:"notoriety"`
	Alignment            float64 `json:"alignment"`
	FateBuffer           float64 `json:"fate_buffer"`

	PityReset              bool     `json:"pity_reset"`
	ConfrontationTriggered bool     `json:"confrontation_triggered"`
	BreakthroughTriggered  bool     `json:"breakthrough_triggered"`
	RogueEventTriggered    bool     `json:"rogue_event_triggered"`
	Drift                  string   `json:"drift"`
	NewFlags               []string `json:"new_flags,omitempty"`
}

// Beat is the slice of a planner beat the delta computation reads.
type Beat struct {
	Tension        int
	IsTurningPoint bool
}

// Input gathers everything one chapter contributes to the delta.
type Input struct {
	Chapter        int
	Beats          []Beat
	RiskLevel      int
	Refused        bool
	Drift          string
	AlignmentShift float64
	Event          crng.EventType
	FateDecay      float64
}

// Compute derives the delta for a chapter. It does not modify p.
// A refused choice never moved the story, so it yields a zero delta.
func Compute(p *player.State, in Input) Delta {
	var d Delta
	if in.Refused {
		return d
	}

	switch in.Drift {
	case DriftMinor:
		d.Drift = DriftMinor
		d.IdentityCoherence = -3
		d.Instability = 5
		d.DecisionQualityScore = -2
	case DriftMajor:
		d.Drift = DriftMajor
		d.IdentityCoherence = -8
		d.Instability = 12
		d.DecisionQualityScore = -2
		d.NewFlags = append(d.NewFlags, fmt.Sprintf("major_drift_ch%d", in.Chapter))
	default:
		d.IdentityCoherence = 2
		d.Instability = -2
		d.DecisionQualityScore = 3
	}

	maxTension := 0
	for _, b := range in.Beats {
		maxTension = max(maxTension, b.Tension)
		if b.IsTurningPoint {
			d.EchoTrace += 2
		}
	}

	risk := min(max(in.RiskLevel, 1), 5)
	d.BreakthroughMeter = float64(max(0, maxTension-4)*2 + (risk-1)*2)

	if risk >= 4 {
		d.Notoriety += 3
	}
	d.Alignment = player.Clamp(in.AlignmentShift, -MaxAlignmentShift, MaxAlignmentShift)
	d.FateBuffer = min(in.FateDecay, 0)

	switch in.Event {
	case crng.EventBreakthrough:
		d.BreakthroughTriggered = true
		d.BreakthroughMeter = -p.BreakthroughMeter
		d.NewFlags = append(d.NewFlags, fmt.Sprintf("breakthrough_ch%d", in.Chapter))
	case crng.EventRogue:
		d.RogueEventTriggered = true
		d.Notoriety += 5
		d.NewFlags = append(d.NewFlags, fmt.Sprintf("rogue_event_ch%d", in.Chapter))
	}
	d.PityReset = in.Event.IsMajor()

	if p.Instability+d.Instability >= ConfrontationThreshold {
		d.ConfrontationTriggered = true
		d.NewFlags = append(d.NewFlags, "identity_confrontation")
	}
	return d
}

// Apply returns a new player with the delta applied. The input is never
// mutated. Scores are clamped, the pity counter resets or increments and
// total_chapters always advances by one.
func Apply(p *player.State, d Delta) *player.State {
	out := p.Clone()

	out.IdentityCoherence += d.IdentityCoherence
	out.Instability += d.Instability
	out.EchoTrace += d.EchoTrace
	out.DecisionQualityScore += d.DecisionQualityScore
	out.BreakthroughMeter += d.BreakthroughMeter
	out.Notoriety += d.Notoriety
	out.Alignment += d.Alignment
	out.FateBuffer += d.FateBuffer
	out.ClampScores()

	if d.PityReset {
		out.PityCounter = 0
	} else {
		out.PityCounter++
	}
	out.TotalChapters++

	for _, f := range d.NewFlags {
		out.AddFlag(f)
	}
	return out
}

// IsZero reports whether the delta changes no score and raises no event.
func (d Delta) IsZero() bool {
	return d.IdentityCoherence == 0 && d.Instability == 0 && d.EchoTrace == 0 &&
		d.DecisionQualityScore == 0 && d.BreakthroughMeter == 0 && d.Notoriety == 0 &&
		d.Alignment == 0 && d.FateBuffer == 0 && !d.PityReset && !d.ConfrontationTriggered &&
		!d.BreakthroughTriggered && !d.RogueEventTriggered && d.Drift == "" && len(d.NewFlags) == 0
}
