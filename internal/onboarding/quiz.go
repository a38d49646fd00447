// Package onboarding turns quiz answers into a new player: archetype, DNA
// affinity, seed identity and a generated unique skill.
package onboarding

import (
	"fmt"
	"slices"
	"sort"

	"github.com/jwebster45206/isekai-engine/pkg/combat"
	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// Option is one answer. Weights add to archetype scores.
type Option struct {
	ID         string                   `json:"id"`
	Text       string                   `json:"text"`
	Weights    map[player.Archetype]int `json:"weights"`
	DNA        []player.DNATag          `json:"dna,omitempty"`
	Value      string                   `json:"value,omitempty"`
	Trait      string                   `json:"trait,omitempty"`
	Motivation string                   `json:"motivation,omitempty"`
	Fear       string                   `json:"fear,omitempty"`
}

// Question is one quiz question.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// Questions is the fixed onboarding quiz.
var Questions = []Question{
	{
		ID:     "q1",
		Prompt: "Bạn tỉnh dậy giữa một khu rừng lạ. Việc đầu tiên bạn làm là gì?",
		Options: []Option{
			{ID: "a", Text: "Tìm con đường dẫn ra khỏi rừng ngay lập tức",
				Weights: map[player.Archetype]int{player.ArchetypeVanguard: 2, player.ArchetypeWanderer: 1},
				DNA:     []player.DNATag{player.DNABloodline}, Trait: "quyết đoán"},
			{ID: "b", Text: "Ngồi yên, quan sát và lắng nghe",
				Weights: map[player.Archetype]int{player.ArchetypeSeeker: 2, player.ArchetypeTactician: 1},
				DNA:     []player.DNATag{player.DNAMind}, Trait: "điềm tĩnh"},
			{ID: "c", Text: "Gọi lớn xem có ai ở gần không",
				Weights: map[player.Archetype]int{player.ArchetypeSovereign: 1, player.ArchetypeCatalyst: 2},
				DNA:     []player.DNATag{player.DNACharm}, Trait: "cởi mở"},
			{ID: "d", Text: "Lục tìm thứ gì có thể làm vũ khí",
				Weights: map[player.Archetype]int{player.ArchetypeTactician: 2, player.ArchetypeVanguard: 1},
				DNA:     []player.DNATag{player.DNARelic}, Trait: "thực tế"},
		},
	},
	{
		ID:     "q2",
		Prompt: "Điều gì bạn không bao giờ đánh đổi?",
		Options: []Option{
			{ID: "a", Text: "Lời hứa đã trao",
				Weights: map[player.Archetype]int{player.ArchetypeSovereign: 2, player.ArchetypeVanguard: 1},
				DNA:     []player.DNATag{player.DNAOath}, Value: "danh dự"},
			{ID: "b", Text: "Sự tự do của chính mình",
				Weights: map[player.Archetype]int{player.ArchetypeWanderer: 2, player.ArchetypeCatalyst: 1},
				DNA:     []player.DNATag{player.DNAChaos}, Value: "tự do"},
			{ID: "c", Text: "Sự thật, dù đau lòng",
				Weights: map[player.Archetype]int{player.ArchetypeSeeker: 2, player.ArchetypeTactician: 1},
				DNA:     []player.DNATag{player.DNAMind}, Value: "chân lý"},
			{ID: "d", Text: "Những người tin tưởng mình",
				Weights: map[player.Archetype]int{player.ArchetypeCatalyst: 1, player.ArchetypeSovereign: 2},
				DNA:     []player.DNATag{player.DNABloodline}, Value: "trung thành"},
		},
	},
	{
		ID:     "q3",
		Prompt: "Một kẻ mạnh hơn chặn đường bạn. Bạn sẽ…",
		Options: []Option{
			{ID: "a", Text: "Đối đầu trực diện",
				Weights: map[player.Archetype]int{player.ArchetypeVanguard: 3},
				DNA:     []player.DNATag{player.DNABloodline}, Trait: "gan dạ"},
			{ID: "b", Text: "Dựng bẫy và chờ thời cơ",
				Weights: map[player.Archetype]int{player.ArchetypeTactician: 3},
				DNA:     []player.DNATag{player.DNATech}, Trait: "mưu lược"},
			{ID: "c", Text: "Thuyết phục hắn tránh đường",
				Weights: map[player.Archetype]int{player.ArchetypeSovereign: 1, player.ArchetypeCatalyst: 2},
				DNA:     []player.DNATag{player.DNACharm}, Trait: "khéo léo"},
			{ID: "d", Text: "Lẩn vào bóng tối và đi đường khác",
				Weights: map[player.Archetype]int{player.ArchetypeWanderer: 2, player.ArchetypeSeeker: 1},
				DNA:     []player.DNATag{player.DNAShadow}, Trait: "kín đáo"},
		},
	},
	{
		ID:     "q4",
		Prompt: "Vì sao bạn muốn trở nên mạnh hơn?",
		Options: []Option{
			{ID: "a", Text: "Để bảo vệ những gì còn lại",
				Weights:    map[player.Archetype]int{player.ArchetypeVanguard: 1, player.ArchetypeSovereign: 1},
				DNA:        []player.DNATag{player.DNAOath},
				Motivation: "bảo vệ những người còn lại bên mình"},
			{ID: "b", Text: "Để hiểu thế giới này vận hành ra sao",
				Weights:    map[player.Archetype]int{player.ArchetypeSeeker: 2},
				DNA:        []player.DNATag{player.DNAMind},
				Motivation: "giải mã quy luật của thế giới mới"},
			{ID: "c", Text: "Để thay đổi trật tự bất công",
				Weights:    map[player.Archetype]int{player.ArchetypeCatalyst: 2},
				DNA:        []player.DNATag{player.DNAChaos},
				Motivation: "lật đổ trật tự bất công"},
			{ID: "d", Text: "Để tìm đường trở về",
				Weights:    map[player.Archetype]int{player.ArchetypeWanderer: 2},
				DNA:        []player.DNATag{player.DNARelic},
				Motivation: "tìm lại con đường trở về thế giới cũ"},
		},
	},
	{
		ID:     "q5",
		Prompt: "Điều bạn sợ nhất là gì?",
		Options: []Option{
			{ID: "a", Text: "Trở nên vô dụng khi người khác cần mình",
				Weights: map[player.Archetype]int{player.ArchetypeVanguard: 1, player.ArchetypeTactician: 1},
				Fear:    "bất lực trước người mình muốn bảo vệ"},
			{ID: "b", Text: "Bị lãng quên",
				Weights: map[player.Archetype]int{player.ArchetypeSovereign: 1, player.ArchetypeCatalyst: 1},
				DNA:     []player.DNATag{player.DNACharm},
				Fear:    "bị thế giới lãng quên"},
			{ID: "c", Text: "Đánh mất chính mình",
				Weights: map[player.Archetype]int{player.ArchetypeSeeker: 1, player.ArchetypeWanderer: 1},
				DNA:     []player.DNATag{player.DNAShadow},
				Fear:    "đánh mất bản ngã"},
			{ID: "d", Text: "Bị kẻ khác điều khiển",
				Weights: map[player.Archetype]int{player.ArchetypeWanderer: 1, player.ArchetypeTactician: 1},
				DNA:     []player.DNATag{player.DNATech},
				Fear:    "trở thành con rối của kẻ khác"},
		},
	},
}

// archetypeCategory is the skill category each origin archetype leans to.
var archetypeCategory = map[player.Archetype]combat.Category{
	player.ArchetypeVanguard:  combat.CategoryManifestation,
	player.ArchetypeCatalyst:  combat.CategoryManipulation,
	player.ArchetypeSovereign: combat.CategoryContract,
	player.ArchetypeSeeker:    combat.CategoryPerception,
	player.ArchetypeTactician: combat.CategoryManipulation,
	player.ArchetypeWanderer:  combat.CategoryObfuscation,
}

// Result is the deterministic outcome of a quiz.
type Result struct {
	Archetype player.Archetype
	Scores    map[player.Archetype]int
	DNA       []player.DNATag
	Seed      player.SeedIdentity
	Category  combat.Category
}

// Score evaluates answers, one option id per question in quiz order.
func Score(answers []string) (Result, error) {
	if len(answers) != len(Questions) {
		return Result{}, fmt.Errorf("expected %d answers, got %d", len(Questions), len(answers))
	}

	res := Result{Scores: make(map[player.Archetype]int, len(player.Archetypes))}
	dnaCount := map[player.DNATag]int{}
	for i, q := range Questions {
		opt, ok := findOption(q, answers[i])
		if !ok {
			return Result{}, fmt.Errorf("question %s: unknown option %q", q.ID, answers[i])
		}
		for a, w := range opt.Weights {
			res.Scores[a] += w
		}
		for _, tag := range opt.DNA {
			dnaCount[tag]++
		}
		if opt.Value != "" {
			res.Seed.CoreValues = append(res.Seed.CoreValues, opt.Value)
		}
		if opt.Trait != "" {
			res.Seed.PersonalityTraits = append(res.Seed.PersonalityTraits, opt.Trait)
		}
		if opt.Motivation != "" {
			res.Seed.Motivation = opt.Motivation
		}
		if opt.Fear != "" {
			res.Seed.Fear = opt.Fear
		}
	}

	// strict > keeps the earliest archetype on a tie
	res.Archetype = player.Archetypes[0]
	for _, a := range player.Archetypes[1:] {
		if res.Scores[a] > res.Scores[res.Archetype] {
			res.Archetype = a
		}
	}
	res.DNA = topDNA(dnaCount)
	res.Category = archetypeCategory[res.Archetype]
	return res, nil
}

func findOption(q Question, id string) (Option, bool) {
	i := slices.IndexFunc(q.Options, func(o Option) bool { return o.ID == id })
	if i < 0 {
		return Option{}, false
	}
	return q.Options[i], true
}

// topDNA keeps the most frequent tags, ties in canonical tag order.
func topDNA(count map[player.DNATag]int) []player.DNATag {
	var tags []player.DNATag
	for _, t := range player.AllDNATags {
		if count[t] > 0 {
			tags = append(tags, t)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return count[tags[i]] > count[tags[j]] })
	if len(tags) > player.MaxDNATags {
		tags = tags[:player.MaxDNATags]
	}
	return tags
}
