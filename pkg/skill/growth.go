package skill

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// Growth stages, in order.
const (
	StageSeed     = "seed"
	StageBloom    = "bloom"
	StageAspect   = "aspect"
	StageUltimate = "ultimate"
)

var stageOrder = []string{StageSeed, StageBloom, StageAspect, StageUltimate}

// Growth types.
const (
	GrowthBase     = "base"
	GrowthEcho     = "echo"
	GrowthScar     = "scar"
	GrowthAspect   = "aspect"
	GrowthUltimate = "ultimate"
)

// Growth thresholds.
const (
	BloomMinUsage    = 5
	BloomEchoTrace   = 30.0
	BloomScarEntries = 2
	AspectMinRank    = 3
	UltimateMinRank  = 5
	MaxAspectOptions = 3
	// ScarSeverity is the consequence severity that scars the skill.
	ScarSeverity = 4
)

var (
	ErrStageRegression = errors.New("skill stage cannot decrease")
	ErrMutationLocked  = errors.New("skill mutations are locked")
)

// StageIndex returns the stage's position, or -1.
func StageIndex(stage string) int {
	return slices.Index(stageOrder, stage)
}

// stageBonus is the cached combat bonus per stage.
var stageBonus = map[string]float64{
	StageSeed:     0.01,
	StageBloom:    0.02,
	StageAspect:   0.04,
	StageUltimate: 0.06,
}

// NewGrowthState returns the seed-stage growth record.
func NewGrowthState() player.SkillGrowthState {
	return player.SkillGrowthState{
		Stage:       StageSeed,
		GrowthType:  GrowthBase,
		CombatBonus: stageBonus[StageSeed],
	}
}

func advance(g *player.SkillGrowthState, to, growthType string, chapter int) error {
	if StageIndex(to) <= StageIndex(g.Stage) {
		return fmt.Errorf("%w: %s -> %s", ErrStageRegression, g.Stage, to)
	}
	g.StageHistory = append(g.StageHistory, player.StageChange{From: g.Stage, To: to, Chapter: chapter})
	g.Stage = to
	g.GrowthType = growthType
	g.CombatBonus = stageBonus[to]
	return nil
}

// RecordUsage counts one invocation of the unique skill.
func RecordUsage(g *player.SkillGrowthState) {
	g.UsageCount++
}

// Mutate counts a narrative mutation of the skill. Frozen after the Aspect Forge.
func Mutate(g *player.SkillGrowthState) error {
	if g.MutationLocked {
		return ErrMutationLocked
	}
	g.MutationCount++
	return nil
}

// AddScar logs a trauma. While mutations are open a scar also counts as one.
func AddScar(g *player.SkillGrowthState, chapter int, trauma string) {
	g.ScarLog = append(g.ScarLog, player.ScarEntry{Chapter: chapter, Trauma: trauma})
	if !g.MutationLocked {
		g.MutationCount++
	}
}

// BloomPath reports which bloom path is open, or "" if neither.
// Echo takes precedence when both qualify.
func BloomPath(g player.SkillGrowthState, echoTrace float64) string {
	if g.Stage != StageSeed || g.UsageCount < BloomMinUsage {
		return ""
	}
	switch {
	case echoTrace >= BloomEchoTrace:
		return GrowthEcho
	case len(g.ScarLog) >= BloomScarEntries:
		return GrowthScar
	}
	return ""
}

// Bloom moves a seed skill to bloom along path.
func Bloom(g *player.SkillGrowthState, path string, chapter int) error {
	if path != GrowthEcho && path != GrowthScar {
		return fmt.Errorf("invalid bloom path %q", path)
	}
	if err := advance(g, StageBloom, path, chapter); err != nil {
		return err
	}
	g.BloomPath = path
	return nil
}

// CanForgeAspect reports whether the skill may enter the Aspect Forge.
func CanForgeAspect(g player.SkillGrowthState, rank int) bool {
	return g.Stage == StageBloom && rank >= AspectMinRank
}

// ForgeAspect fixes the chosen aspect and locks further mutation.
func ForgeAspect(g *player.SkillGrowthState, options []string, chosen string, chapter int) error {
	if len(options) > MaxAspectOptions {
		options = options[:MaxAspectOptions]
	}
	if !slices.Contains(options, chosen) {
		return fmt.Errorf("aspect %q is not among the offered options", chosen)
	}
	if err := advance(g, StageAspect, GrowthAspect, chapter); err != nil {
		return err
	}
	g.AspectOptions = slices.Clone(options)
	g.ChosenAspect = chosen
	g.MutationLocked = true
	return nil
}

// Aspect names offered by the Forge, by index.
const (
	aspectResonance = iota
	aspectCarving
	aspectDominion
)

var aspectSuffixes = []string{"Cộng Hưởng", "Khắc Ấn", "Chủ Tể"}

// DominionAlignment is the |alignment| at which the Forge picks dominion.
const DominionAlignment = 50.0

// AspectOptions lists the aspects the Forge offers for sk.
func AspectOptions(sk player.UniqueSkill) []string {
	out := make([]string, 0, len(aspectSuffixes))
	for _, suffix := range aspectSuffixes {
		out = append(out, sk.Name+" · "+suffix)
	}
	return out
}

// ChooseAspect picks the option the skill's history leads to. A player
// pulled to an alignment extreme takes dominion; otherwise the bloom path
// decides.
func ChooseAspect(options []string, g player.SkillGrowthState, alignment float64) string {
	if len(options) == 0 {
		return ""
	}
	i := aspectResonance
	switch {
	case alignment >= DominionAlignment || alignment <= -DominionAlignment:
		i = aspectDominion
	case g.BloomPath == GrowthScar:
		i = aspectCarving
	}
	return options[min(i, len(options)-1)]
}

// UltimateFormName is the final form's name for a forged skill.
func UltimateFormName(g player.SkillGrowthState) string {
	return g.ChosenAspect + " · Tối Thượng"
}

// CanReachUltimate reports whether the skill may become ultimate.
func CanReachUltimate(g player.SkillGrowthState, rank int) bool {
	return g.Stage == StageAspect && rank >= UltimateMinRank
}

// ReachUltimate sets the final form.
func ReachUltimate(g *player.SkillGrowthState, form string, chapter int) error {
	if err := advance(g, StageUltimate, GrowthUltimate, chapter); err != nil {
		return err
	}
	g.UltimateForm = form
	return nil
}

// AddSubSkill grants a sub-skill once per name.
func AddSubSkill(g *player.SkillGrowthState, sub player.SubSkill) bool {
	for _, s := range g.SubSkills {
		if s.Name == sub.Name {
			return false
		}
	}
	g.SubSkills = append(g.SubSkills, sub)
	return true
}
