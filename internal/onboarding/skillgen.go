package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/isekai-engine/internal/services"
	"github.com/jwebster45206/isekai-engine/pkg/combat"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/prompts"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/textfilter"
)

// RegenerateSimilarity triggers the single regeneration.
const RegenerateSimilarity = skill.WarnSimilarity

// fallbackSkills are used when the model cannot produce a usable skill.
var fallbackSkills = map[combat.Category]player.UniqueSkill{
	combat.CategoryPerception: {
		Name:                "Mắt Tĩnh Lặng",
		Description:         "Nhìn thấy những rung động nhỏ nhất mà người khác bỏ qua.",
		Mechanic:            "Khi tĩnh tâm, nhận ra dấu vết, ý định và sơ hở quanh mình",
		ActivationCondition: "Giữ hơi thở đều và không di chuyển trong chốc lát",
		Limitation:          "Mọi âm thanh xung quanh trở nên chói tai sau mỗi lần dùng",
	},
	combat.CategoryManifestation: {
		Name:                "Ý Chí Thành Hình",
		Description:         "Quyết tâm mãnh liệt hóa thành vật chất trong khoảnh khắc.",
		Mechanic:            "Biến ý chí thành một vật thể tạm thời phục vụ mục đích trước mắt",
		ActivationCondition: "Khi có điều cần bảo vệ ngay trước mắt",
		Limitation:          "Vật thể tan biến khi ý chí dao động",
	},
	combat.CategoryManipulation: {
		Name:                "Sợi Chỉ Nhân Quả",
		Description:         "Khẽ kéo lệch những sợi chỉ nối các sự việc với nhau.",
		Mechanic:            "Đổi thứ tự của hai sự việc nhỏ vừa xảy ra",
		ActivationCondition: "Chạm vào vật liên quan đến cả hai sự việc",
		Limitation:          "Mỗi lần dùng để lại một vết rạn trong ký ức",
	},
	combat.CategoryContract: {
		Name:                "Lời Thề Khắc Cốt",
		Description:         "Biến lời hứa thành ràng buộc mà cả trời đất công nhận.",
		Mechanic:            "Lập khế ước với một người, cả hai đều không thể phá vỡ",
		ActivationCondition: "Hai bên cùng nói ra điều khoản bằng giọng thật",
		Limitation:          "Kẻ phá khế ước, kể cả chính mình, phải trả giá bằng một phần linh hồn",
	},
	combat.CategoryObfuscation: {
		Name:                "Bóng Không Tên",
		Description:         "Trượt khỏi sự chú ý của thế giới như một cái bóng vô danh.",
		Mechanic:            "Khiến người khác quên mất sự hiện diện của mình trong giây lát",
		ActivationCondition: "Khi không ai gọi tên mình",
		Limitation:          "Chính mình cũng dần quên đi một vài ký ức nhỏ",
	},
}

// FallbackSkill returns the fixed skill for a category.
func FallbackSkill(c combat.Category) player.UniqueSkill {
	s, ok := fallbackSkills[c]
	if !ok {
		c = combat.CategoryPerception
		s = fallbackSkills[c]
	}
	s.Category = string(c)
	return s
}

// GeneratedSkill is a skill plus the embedding stored for uniqueness checks.
type GeneratedSkill struct {
	Skill      player.UniqueSkill
	Embedding  []float32
	Similarity float64
	Attempts   int
	Fallback   bool
}

// SkillGenerator asks the onboarding model for a unique skill and checks it
// against the corpus of existing skills.
type SkillGenerator struct {
	llm     services.LLMService
	checker *skill.Checker
	model   string
	logger  *slog.Logger
}

// NewSkillGenerator builds a generator. embedder may be nil.
func NewSkillGenerator(llm services.LLMService, embedder skill.Embedder, model string, logger *slog.Logger) *SkillGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillGenerator{
		llm:     llm,
		checker: skill.NewChecker(embedder, logger),
		model:   model,
		logger:  logger,
	}
}

// Generate produces a skill for the quiz result. A candidate more similar
// than RegenerateSimilarity to an existing skill is regenerated once; the
// second candidate is kept whatever its score.
func (g *SkillGenerator) Generate(ctx context.Context, name string, res Result, corpus []skill.StoredEmbedding) GeneratedSkill {
	var avoid string
	var out GeneratedSkill
	for attempt := 1; attempt <= 2; attempt++ {
		candidate, ok := g.ask(ctx, name, res, avoid)
		if !ok {
			candidate = FallbackSkill(res.Category)
		}
		check := g.checker.Check(ctx, skill.EmbeddingText(candidate.Name, candidate.Description, candidate.Mechanic), corpus)
		out = GeneratedSkill{
			Skill:      candidate,
			Embedding:  check.Embedding,
			Similarity: check.Similarity,
			Attempts:   attempt,
			Fallback:   !ok,
		}
		if check.Similarity <= RegenerateSimilarity {
			break
		}
		avoid = check.MostSimilar
		g.logger.Info("Regenerating unique skill", "similar_to", avoid, "similarity", check.Similarity)
	}
	out.Skill.Growth = skill.NewGrowthState()
	return out
}

type skillReply struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	Mechanic            string `json:"mechanic"`
	ActivationCondition string `json:"activation_condition"`
	Limitation          string `json:"limitation"`
	Category            string `json:"category"`
}

func (g *SkillGenerator) ask(ctx context.Context, name string, res Result, avoid string) (player.UniqueSkill, bool) {
	b := prompts.New().
		WithSection("NHÂN VẬT", name).
		WithSection("NGUYÊN MẪU", string(res.Archetype)).
		WithList("GIÁ TRỊ CỐT LÕI", res.Seed.CoreValues).
		WithList("TÍNH CÁCH", res.Seed.PersonalityTraits).
		WithSection("ĐỘNG LỰC", res.Seed.Motivation).
		WithSection("NỖI SỢ", res.Seed.Fear).
		WithSection("PHẠM TRÙ", string(res.Category))
	if avoid != "" {
		b = b.WithSection("TRÁNH TRÙNG", fmt.Sprintf("Kỹ năng phải khác hẳn %q.", avoid))
	}
	user, err := b.Build()
	if err != nil {
		g.logger.Error("Failed to build skill prompt", "error", err)
		return player.UniqueSkill{}, false
	}

	raw, err := g.llm.Generate(ctx, services.GenerateRequest{
		Agent:       services.AgentOnboarding,
		Model:       g.model,
		System:      prompts.SkillGenerationPrompt,
		User:        user,
		MaxTokens:   1024,
		Temperature: 0.9,
		JSON:        true,
	})
	if err != nil {
		g.logger.Warn("Skill generation failed, using fallback", "error", err)
		return player.UniqueSkill{}, false
	}

	var reply skillReply
	body := strings.TrimSpace(raw)
	body = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(body, "```json"), "```"), "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &reply); err != nil ||
		strings.TrimSpace(reply.Name) == "" || strings.TrimSpace(reply.Mechanic) == "" {
		g.logger.Warn("Skill reply unusable, using fallback",
			"error", err,
			"preview", textfilter.Preview(raw, 200))
		return player.UniqueSkill{}, false
	}

	category := combat.Category(strings.ToLower(strings.TrimSpace(reply.Category)))
	if _, ok := combat.DomainFor(category); !ok {
		category = res.Category
	}
	return player.UniqueSkill{
		Name:                strings.TrimSpace(reply.Name),
		Description:         strings.TrimSpace(reply.Description),
		Mechanic:            strings.TrimSpace(reply.Mechanic),
		ActivationCondition: strings.TrimSpace(reply.ActivationCondition),
		Limitation:          strings.TrimSpace(reply.Limitation),
		Category:            string(category),
	}, true
}
