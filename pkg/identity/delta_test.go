package identity

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/player"
)

func freshPlayer() *player.State {
	return player.New("u", "Minh", player.ArchetypeWanderer, player.SeedIdentity{CoreValues: []string{"tự do"}}, []player.DNATag{player.DNAChaos})
}

func TestCompute_Consistent(t *testing.T) {
	p := freshPlayer()
	d := Compute(p, Input{
		Chapter:   1,
		Beats:     []Beat{{Tension: 3}, {Tension: 7, IsTurningPoint: true}, {Tension: 4}},
		RiskLevel: 2,
	})

	assert.Equal(t, 2.0, d.IdentityCoherence)
	assert.Equal(t, -2.0, d.Instability)
	assert.Equal(t, 3.0, d.DecisionQualityScore)
	assert.Equal(t, 2.0, d.EchoTrace)
	assert.Equal(t, 8.0, d.BreakthroughMeter) // (7-4)*2 + (2-1)*2
	assert.Zero(t, d.Notoriety)
	assert.False(t, d.PityReset)
	assert.Empty(t, d.Drift)
}

func TestCompute_DriftAndRisk(t *testing.T) {
	p := freshPlayer()
	p.Instability = 70

	d := Compute(p, Input{Chapter: 9, RiskLevel: 5, Drift: DriftMajor, AlignmentShift: -25, FateDecay: -1})

	assert.Equal(t, -8.0, d.IdentityCoherence)
	assert.Equal(t, 12.0, d.Instability)
	assert.Equal(t, 3.0, d.Notoriety)
	assert.Equal(t, -10.0, d.Alignment)
	assert.Equal(t, -1.0, d.FateBuffer)
	assert.True(t, d.ConfrontationTriggered)
	assert.Contains(t, d.NewFlags, "identity_confrontation")
	assert.Contains(t, d.NewFlags, "major_drift_ch9")
}

func TestCompute_Events(t *testing.T) {
	p := freshPlayer()
	p.BreakthroughMeter = 92

	d := Compute(p, Input{Chapter: 4, RiskLevel: 3, Event: crng.EventBreakthrough})
	assert.True(t, d.BreakthroughTriggered)
	assert.True(t, d.PityReset)
	assert.Equal(t, -92.0, d.BreakthroughMeter, "meter resets on breakthrough")

	d = Compute(p, Input{Chapter: 4, RiskLevel: 1, Event: crng.EventRogue})
	assert.True(t, d.RogueEventTriggered)
	assert.True(t, d.PityReset)
	assert.Equal(t, 5.0, d.Notoriety)

	d = Compute(p, Input{Chapter: 4, RiskLevel: 1, Event: crng.EventNone})
	assert.False(t, d.PityReset)
}

func TestCompute_RefusedIsZero(t *testing.T) {
	d := Compute(freshPlayer(), Input{Refused: true, RiskLevel: 5, Drift: DriftMajor, Event: crng.EventRogue})
	assert.True(t, d.IsZero())
}

func TestApply_PureAndClamped(t *testing.T) {
	p := freshPlayer()
	p.PityCounter = 4
	p.Notoriety = 99
	snapshot := p.Clone()

	d := Delta{
		IdentityCoherence: 50,
		Instability:       -30,
		Notoriety:         5,
		Alignment:         -500,
		FateBuffer:        -3,
		NewFlags:          []string{"x"},
	}
	out := Apply(p, d)

	if diff := cmp.Diff(snapshot, p); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
	assert.True(t, out.ScoresInRange())
	assert.Equal(t, 100.0, out.IdentityCoherence)
	assert.Equal(t, 0.0, out.Instability)
	assert.Equal(t, 100.0, out.Notoriety)
	assert.Equal(t, -100.0, out.Alignment)
	assert.Equal(t, 97.0, out.FateBuffer)
	assert.Equal(t, 5, out.PityCounter)
	assert.Equal(t, p.TotalChapters+1, out.TotalChapters)
	assert.True(t, out.HasFlag("x"))
}

func TestApply_PityReset(t *testing.T) {
	p := freshPlayer()
	p.PityCounter = 100
	out := Apply(p, Delta{PityReset: true})
	assert.Equal(t, 0, out.PityCounter)
	assert.Equal(t, 1, out.TotalChapters)
}

func TestApply_ZeroDeltaOnlyAdvancesChapter(t *testing.T) {
	p := freshPlayer()
	out := Apply(p, Delta{})

	p.TotalChapters++
	p.PityCounter++
	if diff := cmp.Diff(p, out); diff != "" {
		t.Errorf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestEventsForDelta(t *testing.T) {
	d := Delta{Drift: DriftMinor, ConfrontationTriggered: true, BreakthroughTriggered: true}
	events := EventsForDelta(uuid.New(), uuid.New(), 3, d)
	require.Len(t, events, 4)
	assert.Equal(t, EventDeltaApplied, events[0].Type)
	assert.Equal(t, EventDrift, events[1].Type)
	assert.Equal(t, EventConfrontation, events[2].Type)
	assert.Equal(t, EventBreakthrough, events[3].Type)
}
