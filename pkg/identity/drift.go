package identity

import (
	"slices"
	"strings"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// AbandonThreshold is the accumulated latent bias at which a value leaves
// or joins the active set.
const AbandonThreshold = 1.0

// driftWeight is the bias one chapter of drift adds.
var driftWeight = map[string]float64{
	DriftMinor: 0.25,
	DriftMajor: 1.0,
}

// notorietyTags are earned as notoriety crosses each level.
var notorietyTags = []struct {
	level float64
	tag   string
}{
	{25, "có tiếng"},
	{50, "lừng danh"},
	{75, "khét tiếng"},
}

// rogueTags is the reputation a rogue event leaves, by its affinity.
var rogueTags = map[player.DNATag]string{
	player.DNAShadow:    "bóng ma",
	player.DNAOath:      "kẻ giữ lời thề",
	player.DNABloodline: "huyết mạch cổ",
	player.DNATech:      "kỳ nhân cơ quan",
	player.DNAChaos:     "mầm loạn",
	player.DNAMind:      "kẻ đọc lòng",
	player.DNACharm:     "người mê hoặc",
	player.DNARelic:     "kẻ mang di vật",
}

// Shift is what one chapter did to the current identity.
type Shift struct {
	Abandoned  []string `json:"abandoned,omitempty"`
	Adopted    []string `json:"adopted,omitempty"`
	Reputation []string `json:"reputation,omitempty"`
}

func (s Shift) Empty() bool {
	return len(s.Abandoned) == 0 && len(s.Adopted) == 0 && len(s.Reputation) == 0
}

// ApplyDrift pushes the first seed value still held toward abandonment and,
// when one is named, an emerging value toward adoption. Both build up in the
// latent drift bias; a major drift crosses the threshold in one chapter,
// minor drift takes four.
func ApplyDrift(p *player.State, drift, emerging string) Shift {
	var sh Shift
	w, ok := driftWeight[drift]
	if !ok {
		return sh
	}
	if p.Latent.DriftBias == nil {
		p.Latent.DriftBias = map[string]float64{}
	}

	for _, v := range p.Seed.CoreValues {
		i := indexFold(p.Current.ActiveValues, v)
		if i < 0 {
			continue
		}
		p.Latent.DriftBias[v] -= w
		if p.Latent.DriftBias[v] <= -AbandonThreshold {
			p.Current.ActiveValues = slices.Delete(p.Current.ActiveValues, i, i+1)
			sh.Abandoned = append(sh.Abandoned, v)
		}
		break
	}

	emerging = strings.TrimSpace(emerging)
	if emerging != "" && indexFold(p.Current.ActiveValues, emerging) < 0 {
		p.Latent.DriftBias[emerging] += w
		if p.Latent.DriftBias[emerging] >= AbandonThreshold {
			p.Current.ActiveValues = append(p.Current.ActiveValues, emerging)
			sh.Adopted = append(sh.Adopted, emerging)
		}
	}
	return sh
}

// UpdateReputation tags the player for each notoriety level crossed since
// prev and for a rogue event. It returns the tags that were new.
func UpdateReputation(p *player.State, prev float64, rogue bool, affinity player.DNATag) []string {
	var added []string
	add := func(tag string) {
		if tag == "" || indexFold(p.Current.ReputationTags, tag) >= 0 {
			return
		}
		p.Current.ReputationTags = append(p.Current.ReputationTags, tag)
		added = append(added, tag)
	}
	for _, n := range notorietyTags {
		if prev < n.level && p.Notoriety >= n.level {
			add(n.tag)
		}
	}
	if rogue {
		tag, ok := rogueTags[affinity]
		if !ok {
			tag = "biến số"
		}
		add(tag)
	}
	return added
}

func indexFold(list []string, v string) int {
	v = strings.TrimSpace(v)
	return slices.IndexFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), v)
	})
}
