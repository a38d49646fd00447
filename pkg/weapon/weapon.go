package weapon

import (
	"slices"
)

// Grade is the narrative quality tier of a weapon.
type Grade string

const (
	GradeMundane        Grade = "mundane"
	GradeResonant       Grade = "resonant"
	GradeSoulLinked     Grade = "soul_linked"
	GradeAwakened       Grade = "awakened"
	GradeArchonFragment Grade = "archon_fragment"
)

var gradeOrder = []Grade{GradeMundane, GradeResonant, GradeSoulLinked, GradeAwakened, GradeArchonFragment}

// Rank returns the position of the grade in the ladder, or -1 when unknown.
func (g Grade) Rank() int {
	return slices.Index(gradeOrder, g)
}

// AtLeast reports whether g is the same as or above other.
func (g Grade) AtLeast(other Grade) bool {
	return g.Rank() >= 0 && g.Rank() >= other.Rank()
}

// Crystal is a soul crystal kind held in a weapon's inventory.
type Crystal string

const (
	CrystalShard     Crystal = "shard"
	CrystalTrue      Crystal = "true_crystal"
	CrystalSovereign Crystal = "sovereign"
)

// Slot is where the weapon is equipped.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
	SlotStowed    Slot = "stowed"
)

// MaxPrinciples is the number of principle slots on a weapon.
const MaxPrinciples = 3

const (
	// BondCapDefault applies until the weapon awakens.
	BondCapDefault = 100.0
	// BondCapAwakened applies to awakened and archon-fragment weapons.
	BondCapAwakened = 150.0

	SoulLinkBond = 60.0
	AwakenBond   = 100.0
)

// BondEvent is one entry of the bond log.
type BondEvent struct {
	Chapter int     `json:"chapter"`
	Event   string  `json:"event"`
	Delta   float64 `json:"delta"`
}

// Weapon is a player-held weapon. Progression is narrative; the only numbers
// are bond and the signature move's mechanical value, neither shown to players.
type Weapon struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Grade                Grade          `json:"grade"`
	Principles           []string       `json:"principles,omitempty"`
	Slot                 Slot           `json:"slot"`
	BondScore            float64        `json:"bond_score"`
	Crystals             []Crystal      `json:"soul_crystals,omitempty"`
	BondLog              []BondEvent    `json:"bond_events,omitempty"`
	SignatureMove        *SignatureMove `json:"signature_move,omitempty"`
	ClimaxEncounterCount int            `json:"climax_encounter_count"`
	Dormant              bool           `json:"dormant"`
	DormantSinceChapter  int            `json:"dormant_since_chapter,omitempty"`
	AwakeningPending     bool           `json:"awakening_pending"`
}

// PrimaryPrinciple returns the first principle slot, or "".
func (w *Weapon) PrimaryPrinciple() string {
	if len(w.Principles) == 0 {
		return ""
	}
	return w.Principles[0]
}

// HasPrinciple reports whether any slot carries principle p.
func (w *Weapon) HasPrinciple(p string) bool {
	return p != "" && slices.Contains(w.Principles, p)
}

// Usable reports whether the weapon can contribute to combat.
func (w *Weapon) Usable() bool {
	return !w.Dormant && w.Slot != SlotStowed
}

// BondCap depends on whether the weapon has awakened.
func (w *Weapon) BondCap() float64 {
	if w.Grade.AtLeast(GradeAwakened) {
		return BondCapAwakened
	}
	return BondCapDefault
}

// AddBond changes the bond score, clamps it and logs the event.
// Soul-linking and pending awakening are triggered by crossing thresholds.
func (w *Weapon) AddBond(delta float64, chapter int, event string) {
	w.BondScore = min(max(w.BondScore+delta, 0), w.BondCap())
	w.BondLog = append(w.BondLog, BondEvent{Chapter: chapter, Event: event, Delta: delta})

	if w.Grade == GradeResonant && w.BondScore >= SoulLinkBond {
		w.Grade = GradeSoulLinked
	}
	if w.Grade == GradeSoulLinked && w.BondScore >= AwakenBond && !w.Dormant {
		w.AwakeningPending = true
	}
}

// Awaken completes a pending awakening.
func (w *Weapon) Awaken() bool {
	if !w.AwakeningPending || w.Dormant {
		return false
	}
	w.Grade = GradeAwakened
	w.AwakeningPending = false
	return true
}

// MarkDormant takes the weapon out of combat until a recovery beat lands.
func (w *Weapon) MarkDormant(chapter int) {
	w.Dormant = true
	w.DormantSinceChapter = chapter
}

// Recover clears dormancy.
func (w *Weapon) Recover() bool {
	if !w.Dormant {
		return false
	}
	w.Dormant = false
	w.DormantSinceChapter = 0
	return true
}

// HasCrystal reports whether any of kinds is in the inventory.
func (w *Weapon) HasCrystal(kinds ...Crystal) bool {
	for _, c := range w.Crystals {
		if slices.Contains(kinds, c) {
			return true
		}
	}
	return false
}

// AddCrystal appends a crystal to the inventory.
func (w *Weapon) AddCrystal(c Crystal) {
	w.Crystals = append(w.Crystals, c)
}

// consumeCrystal removes exactly one crystal among accepted kinds,
// preferring a sovereign crystal. It returns the removed kind.
func (w *Weapon) consumeCrystal(accepted ...Crystal) (Crystal, bool) {
	idx := -1
	for i, c := range w.Crystals {
		if !slices.Contains(accepted, c) {
			continue
		}
		if c == CrystalSovereign {
			idx = i
			break
		}
		if idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return "", false
	}
	removed := w.Crystals[idx]
	w.Crystals = slices.Delete(slices.Clone(w.Crystals), idx, idx+1)
	return removed, true
}
