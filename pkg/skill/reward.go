package skill

import (
	"fmt"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// RewardInterval is the chapter cadence of skill rewards.
const RewardInterval = 5

// subSkillCap is the number of sub-skills a stage can hold.
var subSkillCap = map[string]int{
	StageSeed:     1,
	StageBloom:    2,
	StageAspect:   3,
	StageUltimate: 4,
}

// RewardPlan tells the planner to stage a discovery beat for a sub-skill.
type RewardPlan struct {
	ShouldReward bool   `json:"should_reward"`
	RewardType   string `json:"reward_type,omitempty"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// PlanReward decides whether the upcoming chapter should grant a sub-skill.
// chapter is the number of the chapter about to be written.
func PlanReward(p *player.State, chapter int) RewardPlan {
	if p.Skill == nil || p.Seal.Sealed {
		return RewardPlan{}
	}
	g := p.Skill.Growth
	if chapter <= 0 || chapter%RewardInterval != 0 {
		return RewardPlan{}
	}
	if len(g.SubSkills) >= subSkillCap[g.Stage] {
		return RewardPlan{}
	}
	n := len(g.SubSkills) + 1
	return RewardPlan{
		ShouldReward: true,
		RewardType:   "sub_skill",
		Name:         fmt.Sprintf("%s: Nhánh %s", p.Skill.Name, roman(n)),
		Description:  fmt.Sprintf("Một nhánh mới nảy ra từ %s, mở rộng cơ chế: %s", p.Skill.Name, p.Skill.Mechanic),
		Reason:       fmt.Sprintf("chapter %d reward, stage %s", chapter, g.Stage),
	}
}

func roman(n int) string {
	numerals := []string{"I", "II", "III", "IV", "V", "VI"}
	if n >= 1 && n <= len(numerals) {
		return numerals[n-1]
	}
	return fmt.Sprint(n)
}
