package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/isekai-engine/pkg/archetype"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/weapon"
)

// PlayerPromptState is a reduced player record for LLM prompts.
// Raw scores are replaced by qualitative labels so they never leak into prose.
type PlayerPromptState struct {
	Name           string              `json:"name"`
	Archetype      string              `json:"archetype"`
	TransmutedForm string              `json:"transmuted_form,omitempty"`
	RankTitle      string              `json:"rank_title,omitempty"`
	Floor          int                 `json:"floor"`
	CoreValues     []string            `json:"core_values,omitempty"`
	ActiveValues   []string            `json:"active_values,omitempty"`
	Traits         []string            `json:"traits,omitempty"`
	Motivation     string              `json:"motivation,omitempty"`
	Fear           string              `json:"fear,omitempty"`
	ReputationTags []string            `json:"reputation_tags,omitempty"`
	DNA            []player.DNATag     `json:"dna,omitempty"`
	IdentityState  string              `json:"identity_state"`
	Skill          *SkillPromptState   `json:"unique_skill,omitempty"`
	Weapons        []WeaponPromptState `json:"weapons,omitempty"`
	Sealed         bool                `json:"skill_sealed,omitempty"`
}

type SkillPromptState struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Mechanic     string   `json:"mechanic"`
	Limitation   string   `json:"limitation,omitempty"`
	Category     string   `json:"category"`
	Stage        string   `json:"stage"`
	Aspect       string   `json:"aspect,omitempty"`
	UltimateForm string   `json:"ultimate_form,omitempty"`
	SubSkills    []string `json:"sub_skills,omitempty"`
}

type WeaponPromptState struct {
	Name          string       `json:"name"`
	Grade         weapon.Grade `json:"grade"`
	Slot          weapon.Slot  `json:"slot"`
	Principles    []string     `json:"principles,omitempty"`
	Dormant       bool         `json:"dormant,omitempty"`
	SignatureMove string       `json:"signature_move,omitempty"`
	EarlierForms  []string     `json:"earlier_forms,omitempty"`
}

// identityLabel maps coherence to a label the writer can dramatise.
func identityLabel(coherence float64) string {
	switch {
	case coherence >= 70:
		return "vững vàng"
	case coherence >= 40:
		return "dao động"
	default:
		return "rạn nứt"
	}
}

func ToPromptState(p *player.State) *PlayerPromptState {
	ps := &PlayerPromptState{
		Name:           p.Name,
		Archetype:      string(p.Archetype),
		RankTitle:      p.Progression.RankTitle,
		Floor:          p.Progression.Floor,
		CoreValues:     p.Seed.CoreValues,
		ActiveValues:   p.Current.ActiveValues,
		Traits:         p.Current.ActiveTraits,
		Motivation:     p.Current.Motivation,
		Fear:           p.Seed.Fear,
		ReputationTags: p.Current.ReputationTags,
		DNA:            p.DNA,
		IdentityState:  identityLabel(p.IdentityCoherence),
		Sealed:         p.Seal.Sealed,
	}
	if f, ok := archetype.FormByID(p.ArchetypeEvolution.TransmutedForm); ok {
		ps.TransmutedForm = f.Name
	}
	if s := p.Skill; s != nil {
		sk := &SkillPromptState{
			Name:         s.Name,
			Description:  s.Description,
			Mechanic:     s.Mechanic,
			Limitation:   s.Limitation,
			Category:     s.Category,
			Stage:        s.Growth.Stage,
			Aspect:       s.Growth.ChosenAspect,
			UltimateForm: s.Growth.UltimateForm,
		}
		for _, sub := range s.Growth.SubSkills {
			sk.SubSkills = append(sk.SubSkills, sub.Name)
		}
		ps.Skill = sk
	}
	for _, w := range p.Weapons {
		wp := WeaponPromptState{
			Name:       w.Name,
			Grade:      w.Grade,
			Slot:       w.Slot,
			Principles: w.Principles,
			Dormant:    w.Dormant,
		}
		if m := w.SignatureMove; m != nil {
			wp.SignatureMove = m.Name
			for _, earlier := range []string{m.V1Name, m.V2Name} {
				if earlier != "" && earlier != m.Name {
					wp.EarlierForms = append(wp.EarlierForms, earlier)
				}
			}
		}
		ps.Weapons = append(ps.Weapons, wp)
	}
	return ps
}

// GetPlayerPrompt renders the reduced player state as a fenced JSON block.
func GetPlayerPrompt(p *player.State) (string, error) {
	if p == nil {
		return "", fmt.Errorf("player state is nil")
	}
	data, err := json.MarshalIndent(ToPromptState(p), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal player prompt state: %w", err)
	}
	return "```json\n" + string(data) + "\n```", nil
}
