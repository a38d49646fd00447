// Package archetype decides when an origin archetype transmutes, and into what.
// It is a pure check; the planner turns a ready event into a three-scene arc.
package archetype

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// Thresholds gate the Origin -> Transmuted check.
type Thresholds struct {
	MinRank             int     `yaml:"min_rank"`
	MinChapters         int     `yaml:"min_chapters"`
	MinDQS              float64 `yaml:"min_dqs"`
	MinEchoTrace        float64 `yaml:"min_echo_trace"`
	AlignedCoherence    float64 `yaml:"aligned_coherence"`
	AlignedOverlap      float64 `yaml:"aligned_overlap"`
	DivergedOverlap     float64 `yaml:"diverged_overlap"`
	ReputationTags      int     `yaml:"reputation_tags"`
	ReputationNotoriety float64 `yaml:"reputation_notoriety"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRank:             3,
		MinChapters:         20,
		MinDQS:              55,
		MinEchoTrace:        20,
		AlignedCoherence:    70,
		AlignedOverlap:      0.67,
		DivergedOverlap:     0.34,
		ReputationTags:      3,
		ReputationNotoriety: 50,
	}
}

// Event is the result of a check.
type Event struct {
	Ready  bool   `json:"transmutation_ready"`
	Form   Form   `json:"form"`
	Reason string `json:"reason"`
}

// ValueOverlap is the share of seed core values still active, in [0, 1].
// A player without seed values counts as fully aligned.
func ValueOverlap(seed player.SeedIdentity, cur player.CurrentIdentity) float64 {
	if len(seed.CoreValues) == 0 {
		return 1
	}
	kept := 0
	for _, v := range seed.CoreValues {
		for _, a := range cur.ActiveValues {
			if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(a)) {
				kept++
				break
			}
		}
	}
	return float64(kept) / float64(len(seed.CoreValues))
}

// Check runs the Phase 1 transmutation check. Only origin-stage players
// without a pending transmutation qualify.
func Check(p *player.State, t Thresholds) Event {
	evo := p.ArchetypeEvolution
	if evo.Stage == player.EvolutionStageTransmuted || evo.TransmutationPending {
		return Event{Reason: "already transmuted or pending"}
	}
	if _, ok := Forms[p.Archetype]; !ok {
		return Event{Reason: fmt.Sprintf("unknown archetype %q", p.Archetype)}
	}
	switch {
	case p.Progression.Rank < t.MinRank:
		return Event{Reason: "rank too low"}
	case p.TotalChapters < t.MinChapters:
		return Event{Reason: "too few chapters"}
	case p.DecisionQualityScore < t.MinDQS:
		return Event{Reason: "decision quality too low"}
	case p.EchoTrace < t.MinEchoTrace:
		return Event{Reason: "echo trace too faint"}
	}

	path, reason := choosePath(p, t)
	if path == "" {
		return Event{Reason: reason}
	}
	return Event{Ready: true, Form: Forms[p.Archetype][path], Reason: reason}
}

func choosePath(p *player.State, t Thresholds) (Path, string) {
	if len(p.Current.ReputationTags) >= t.ReputationTags && p.Notoriety >= t.ReputationNotoriety {
		return PathReputation, "reputation outgrew the person"
	}
	overlap := ValueOverlap(p.Seed, p.Current)
	switch {
	case overlap >= t.AlignedOverlap && p.IdentityCoherence >= t.AlignedCoherence:
		return PathAligned, fmt.Sprintf("seed values held (%.2f)", overlap)
	case overlap <= t.DivergedOverlap:
		return PathDiverged, fmt.Sprintf("seed values abandoned (%.2f)", overlap)
	}
	return "", "identity still unsettled"
}

// MarkPending records a ready event so the next chapter plays the sequence.
func MarkPending(p *player.State, ev Event) {
	if !ev.Ready {
		return
	}
	p.ArchetypeEvolution.PendingForm = ev.Form.ID
	p.ArchetypeEvolution.TransmutationPending = true
}

// Apply completes a pending transmutation. The form name joins the
// player's reputation tags.
func Apply(p *player.State, chapter int) (Form, error) {
	evo := &p.ArchetypeEvolution
	if !evo.TransmutationPending {
		return Form{}, fmt.Errorf("no transmutation pending")
	}
	f, ok := FormByID(evo.PendingForm)
	if !ok {
		return Form{}, fmt.Errorf("unknown transmuted form %q", evo.PendingForm)
	}
	evo.Stage = player.EvolutionStageTransmuted
	evo.TransmutedForm = f.ID
	evo.TransmutedAtChapter = chapter
	evo.PendingForm = ""
	evo.TransmutationPending = false
	p.Current.ReputationTags = append(p.Current.ReputationTags, f.Name)
	return f, nil
}
