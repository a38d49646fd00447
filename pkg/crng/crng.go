// Package crng implements controlled randomness: a pity timer that raises the
// chance of a major event the longer none has happened, deterministic
// breakthroughs, early-game rogue events and DNA-biased affinity rolls.
package crng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"slices"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// EventType is the outcome of a chapter roll.
type EventType string

const (
	EventBreakthrough EventType = "breakthrough"
	EventRogue        EventType = "rogue_event"
	EventMajor        EventType = "major_event"
	EventNone         EventType = "none"
)

// IsMajor reports whether the event resets the pity counter.
func (e EventType) IsMajor() bool {
	return e == EventBreakthrough || e == EventRogue || e == EventMajor
}

// Config holds the CRNG tunables.
type Config struct {
	PityBaseChance        float64 `yaml:"pity_base_chance"`
	PityIncrement         float64 `yaml:"pity_increment"`
	PityMaxBonus          float64 `yaml:"pity_max_bonus"`
	BreakthroughThreshold float64 `yaml:"breakthrough_threshold"`
	RogueEventMaxChapter  int     `yaml:"rogue_event_max_chapter"`
	DNABias               float64 `yaml:"dna_bias"`
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		PityBaseChance:        0.05,
		PityIncrement:         0.02,
		PityMaxBonus:          0.20,
		BreakthroughThreshold: 90,
		RogueEventMaxChapter:  30,
		DNABias:               0.70,
	}
}

// Event is the result of RollChapterEvents.
type Event struct {
	EventType EventType     `json:"event_type"`
	Affinity  player.DNATag `json:"affinity,omitempty"`
	Chance    float64       `json:"chance,omitempty"`
}

// Engine rolls chapter events. An Engine is owned by one pipeline run and is
// not safe for concurrent use.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

// New builds an engine with a fixed seed.
func New(cfg Config, seed int64) *Engine {
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Config returns the engine's tunables.
func (e *Engine) Config() Config {
	return e.cfg
}

// PityChance is base + min(counter*increment, max_bonus).
func (e *Engine) PityChance(counter int) float64 {
	if counter < 0 {
		counter = 0
	}
	return e.cfg.PityBaseChance + min(float64(counter)*e.cfg.PityIncrement, e.cfg.PityMaxBonus)
}

// ShouldTriggerBreakthrough is deterministic: the meter reached the threshold.
func (e *Engine) ShouldTriggerBreakthrough(p *player.State) bool {
	return p.BreakthroughMeter >= e.cfg.BreakthroughThreshold
}

// ShouldTriggerRogueEvent rolls the pity chance, but only in the early game.
func (e *Engine) ShouldTriggerRogueEvent(p *player.State) bool {
	if p.TotalChapters > e.cfg.RogueEventMaxChapter {
		return false
	}
	return e.rng.Float64() < e.PityChance(p.PityCounter)
}

func (e *Engine) shouldTriggerMajorEvent(p *player.State) bool {
	return e.rng.Float64() < e.PityChance(p.PityCounter)
}

// RollAffinity draws from the player's DNA tags with DNABias probability and
// from the remaining tags otherwise.
func (e *Engine) RollAffinity(p *player.State) player.DNATag {
	if len(p.DNA) == 0 {
		return player.AllDNATags[e.rng.Intn(len(player.AllDNATags))]
	}
	var others []player.DNATag
	for _, tag := range player.AllDNATags {
		if !slices.Contains(p.DNA, tag) {
			others = append(others, tag)
		}
	}
	if len(others) == 0 || e.rng.Float64() < e.cfg.DNABias {
		return p.DNA[e.rng.Intn(len(p.DNA))]
	}
	return others[e.rng.Intn(len(others))]
}

// RollChapterEvents returns the first hit in priority order:
// breakthrough, rogue event, pity major event, none.
func (e *Engine) RollChapterEvents(p *player.State) Event {
	chance := e.PityChance(p.PityCounter)
	switch {
	case e.ShouldTriggerBreakthrough(p):
		return Event{EventType: EventBreakthrough, Affinity: e.RollAffinity(p)}
	case e.ShouldTriggerRogueEvent(p):
		return Event{EventType: EventRogue, Affinity: e.RollAffinity(p), Chance: chance}
	case e.shouldTriggerMajorEvent(p):
		return Event{EventType: EventMajor, Affinity: e.RollAffinity(p), Chance: chance}
	}
	return Event{EventType: EventNone}
}
