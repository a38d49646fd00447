package crng

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

func newPlayer(dna ...player.DNATag) *player.State {
	return player.New("u", "n", player.ArchetypeSeeker, player.SeedIdentity{}, dna)
}

func TestPityChance(t *testing.T) {
	e := New(DefaultConfig(), 1)

	tests := []struct {
		counter int
		want    float64
	}{
		{0, 0.05},
		{1, 0.07},
		{5, 0.15},
		{10, 0.25},
		{11, 0.25},
		{1000, 0.25},
		{-3, 0.05},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, e.PityChance(tt.counter), 1e-9, "counter=%d", tt.counter)
	}
}

func TestBreakthroughHasPriority(t *testing.T) {
	p := newPlayer(player.DNAShadow)
	p.BreakthroughMeter = 92
	p.PityCounter = 100

	for seed := int64(0); seed < 50; seed++ {
		ev := New(DefaultConfig(), seed).RollChapterEvents(p)
		require.Equal(t, EventBreakthrough, ev.EventType, "seed %d", seed)
	}
}

func TestNoRogueEventAfterEarlyGame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PityBaseChance = 1 // every roll hits
	p := newPlayer()
	p.TotalChapters = 31

	for seed := int64(0); seed < 50; seed++ {
		e := New(cfg, seed)
		assert.False(t, e.ShouldTriggerRogueEvent(p))
		ev := e.RollChapterEvents(p)
		assert.NotEqual(t, EventRogue, ev.EventType)
		assert.Equal(t, EventMajor, ev.EventType)
	}
}

func TestRogueEventInEarlyGame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PityBaseChance = 1
	p := newPlayer()
	p.TotalChapters = 30

	ev := New(cfg, 7).RollChapterEvents(p)
	assert.Equal(t, EventRogue, ev.EventType)
	assert.True(t, ev.EventType.IsMajor())
}

func TestNoEventWhenChanceIsZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PityBaseChance = 0
	cfg.PityIncrement = 0
	ev := New(cfg, 3).RollChapterEvents(newPlayer())
	assert.Equal(t, EventNone, ev.EventType)
	assert.False(t, ev.EventType.IsMajor())
}

func TestSameSeedSameRolls(t *testing.T) {
	p := newPlayer(player.DNAOath, player.DNATech)
	a, b := New(DefaultConfig(), 42), New(DefaultConfig(), 42)
	for range 20 {
		assert.Equal(t, a.RollChapterEvents(p), b.RollChapterEvents(p))
	}
}

func TestRollAffinity_Bias(t *testing.T) {
	p := newPlayer(player.DNAShadow, player.DNAMind)
	e := New(DefaultConfig(), 99)

	const n = 5000
	own := 0
	for range n {
		tag := e.RollAffinity(p)
		require.Contains(t, player.AllDNATags, tag)
		if slices.Contains(p.DNA, tag) {
			own++
		}
	}
	ratio := float64(own) / n
	assert.InDelta(t, 0.70, ratio, 0.05)
}

func TestRollAffinity_NoDNA(t *testing.T) {
	e := New(DefaultConfig(), 5)
	seen := map[player.DNATag]bool{}
	for range 500 {
		seen[e.RollAffinity(newPlayer())] = true
	}
	assert.Len(t, seen, len(player.AllDNATags))
}

func TestNewSeed(t *testing.T) {
	_, err := NewSeed()
	require.NoError(t, err)
}
