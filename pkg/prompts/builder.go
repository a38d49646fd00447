package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/isekai-engine/pkg/crng"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/skill"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

type section struct {
	title string
	body  string
}

// Builder assembles an agent's user prompt from titled sections using a
// fluent interface. Empty sections are skipped; the first error sticks.
type Builder struct {
	sections []section
	err      error
}

// New creates an empty prompt builder.
func New() *Builder {
	return &Builder{}
}

// WithSection adds a titled block.
func (b *Builder) WithSection(title, body string) *Builder {
	body = strings.TrimSpace(body)
	if body == "" {
		return b
	}
	b.sections = append(b.sections, section{title: title, body: body})
	return b
}

// WithList adds a titled bullet list.
func (b *Builder) WithList(title string, items []string) *Builder {
	var sb strings.Builder
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			sb.WriteString("- " + it + "\n")
		}
	}
	return b.WithSection(title, sb.String())
}

// WithPlayer adds the reduced player state.
func (b *Builder) WithPlayer(p *player.State) *Builder {
	block, err := GetPlayerPrompt(p)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("error building player prompt: %w", err)
		}
		return b
	}
	return b.WithSection("NHÂN VẬT CHÍNH", block)
}

// WithStory adds reader preferences, tone and backstory.
func (b *Builder) WithStory(tags []string, tone, backstory string) *Builder {
	var sb strings.Builder
	if len(tags) > 0 {
		sb.WriteString("Sở thích người đọc: " + strings.Join(tags, ", ") + "\n")
	}
	if tone != "" {
		sb.WriteString("Giọng văn: " + tone + "\n")
	}
	if backstory != "" {
		sb.WriteString("Tiền truyện: " + backstory + "\n")
	}
	return b.WithSection("CÂU CHUYỆN", sb.String())
}

// WithPreviousSummary adds the previous chapter's summary.
func (b *Builder) WithPreviousSummary(summary string) *Builder {
	return b.WithSection("CHƯƠNG TRƯỚC", summary)
}

// WithChoice adds the player's chosen action.
func (b *Builder) WithChoice(c *story.Choice) *Builder {
	if c == nil {
		return b.WithSection("HÀNH ĐỘNG CỦA NGƯỜI CHƠI", "Chương mở đầu, chưa có lựa chọn.")
	}
	body := fmt.Sprintf("%s (rủi ro %d/5)", c.Text, c.RiskLevel)
	if c.ConsequenceHint != "" {
		body += "\nGợi ý hệ quả: " + c.ConsequenceHint
	}
	return b.WithSection("HÀNH ĐỘNG CỦA NGƯỜI CHƠI", body)
}

// WithLedger adds the rendered story ledger block verbatim.
func (b *Builder) WithLedger(block string) *Builder {
	return b.WithSection("SỔ CÁI", block)
}

// WithEvent adds the CRNG outcome as a narrative directive.
func (b *Builder) WithEvent(ev crng.Event) *Builder {
	return b.WithSection("SỰ KIỆN ĐỊNH MỆNH", EventDirective(ev))
}

// WithFate adds the fate-buffer instruction.
func (b *Builder) WithFate(line string) *Builder {
	return b.WithSection("SỐ PHẬN", line)
}

// WithSkillReward adds a pending sub-skill reward.
func (b *Builder) WithSkillReward(plan skill.RewardPlan) *Builder {
	if !plan.ShouldReward {
		return b
	}
	return b.WithSection("PHẦN THƯỞNG KỸ NĂNG",
		fmt.Sprintf("Trong chương này nhân vật lĩnh ngộ nhánh kỹ năng mới \"%s\": %s", plan.Name, plan.Description))
}

// Build renders all sections in insertion order.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if len(b.sections) == 0 {
		return "", fmt.Errorf("prompt has no sections")
	}
	var sb strings.Builder
	for i, s := range b.sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("### " + s.title + "\n" + s.body)
	}
	return sb.String(), nil
}

// EventDirective describes a CRNG outcome for the planner.
func EventDirective(ev crng.Event) string {
	affinity := ""
	if ev.Affinity != "" {
		affinity = fmt.Sprintf(" Sắc thái: %s.", ev.Affinity)
	}
	switch ev.EventType {
	case crng.EventBreakthrough:
		return "ĐỘT PHÁ: nhân vật chạm tới bước ngoặt tu vi trong chương này." + affinity
	case crng.EventRogue:
		return "BIẾN CỐ BẤT NGỜ: một sự kiện ngoài dự tính ập đến, phá vỡ kế hoạch." + affinity
	case crng.EventMajor:
		return "SỰ KIỆN LỚN: một biến chuyển quan trọng của thế giới xảy ra quanh nhân vật." + affinity
	default:
		return "Không có sự kiện định mệnh; để câu chuyện tự vận động." + affinity
	}
}
