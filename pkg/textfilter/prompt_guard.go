package textfilter

import (
	"errors"
	"log/slog"
	"strings"
)

// RefusalMessage is the only thing a player is told when input is rejected.
const RefusalMessage = "Nội dung không hợp lệ. Hãy mô tả hành động của nhân vật một cách tự nhiên."

// DefaultMaxInputLength is the free-text cap, in runes.
const DefaultMaxInputLength = 500

const guardPreviewRunes = 120

// ErrInjection is wrapped by every GuardError.
var ErrInjection = errors.New("prompt injection detected")

// GuardError reports which pattern rejected an input. Error() returns the
// player-facing message; Label and Preview are for logs only.
type GuardError struct {
	Label   string
	Preview string
}

func (e *GuardError) Error() string { return RefusalMessage }

func (e *GuardError) Unwrap() error { return ErrInjection }

// injectionPatterns is compiled once at package load.
var injectionPatterns = compileRules([][2]string{
	// meta-instruction overrides
	{"meta_ignore_instructions", `ignore\s+(all\s+|any\s+|the\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules|messages)`},
	{"meta_forget", `forget\s+(everything|all(\s+previous)?|your\s+(instructions|rules))`},
	{"meta_system_prompt", `system\s+prompt`},
	{"meta_role_injection", `(^|\n)\s*(assistant|system|user)\s*:`},
	{"meta_ignore_vi", `bỏ\s+qua\s+(mọi|tất\s+cả|các|những)?\s*(hướng\s+dẫn|chỉ\s+dẫn|lệnh|quy\s+tắc)\s+(trước|trên|ban\s+đầu|hệ\s+thống|của\s+bạn)`},
	{"meta_forget_vi", `quên\s+(hết|tất\s+cả|mọi)\s+(hướng\s+dẫn|chỉ\s+dẫn|lệnh|quy\s+tắc)`},
	// role hijacks
	{"role_you_are_now", `you\s+are\s+now`},
	{"role_pretend", `pretend\s+(to\s+be|you\s+are)`},
	{"role_jailbreak", `((?-i:\bDAN\b)|jailbreak|developer\s+mode|do\s+anything\s+now)`},
	{"role_act_as", `act\s+as\s+(an?\s+)?(ai|assistant|system|narrator|game\s*master|gm)\b`},
	{"role_vi", `(từ\s+giờ|bây\s+giờ)\s+(bạn|mày|ngươi)\s+là|(hãy\s+)?giả\s+vờ\s+(là|làm)\s+(ai|trợ\s+lý|hệ\s+thống)`},
	// stat manipulation
	{"stat_set", `set\s+my\s+(stats?|power|level|hp|health|strength|mana|rank)`},
	{"stat_god_mode", `god\s*mode|chế\s+độ\s+(thần|bất\s+tử)`},
	{"stat_infinite", `(infinite|unlimited)\s+(health|power|mana|hp|money|gold)|(sức\s+mạnh|máu|mana)\s+vô\s+hạn`},
	{"stat_max_vi", `(tăng|đặt)\s+(chỉ\s+số|sức\s+mạnh|cấp\s+độ)\s+(lên\s+)?(tối\s+đa|max)`},
	// rule / safety bypass
	{"bypass_override", `override\s+(the\s+)?(narrative|story|rules|system)`},
	{"bypass_admin", `admin\s+mode|sudo\s+mode|chế\s+độ\s+quản\s+trị`},
	{"bypass_disable", `(bypass|disable|turn\s+off)\s+(the\s+)?(rules|filters?|safety|guards?|canon)`},
	// template / script injection
	{"template_injection", `\{\{.*?\}\}|\{%.*?%\}|\$\{[^}]*\}`},
	{"script_injection", `<\s*/?\s*script|javascript\s*:`},
	// prompt extraction
	{"extract_repeat", `(repeat|print|show|reveal|output)\s+(me\s+)?(the\s+|your\s+)?(system\s+|initial\s+)?(prompt|instructions)`},
	{"extract_question", `what\s+(are|were)\s+your\s+(instructions|rules|prompts?)`},
	{"extract_vi", `(nhắc\s+lại|tiết\s+lộ|cho\s+(tôi|ta)\s+xem)\s+(lời\s+nhắc|hướng\s+dẫn|chỉ\s+dẫn)\s+(hệ\s+thống|của\s+bạn)`},
})

// PromptGuard sanitises free-text player input.
type PromptGuard struct {
	maxLength int
	logger    *slog.Logger
}

// NewPromptGuard builds a guard with the given rune cap.
func NewPromptGuard(maxLength int, logger *slog.Logger) *PromptGuard {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptGuard{maxLength: maxLength, logger: logger}
}

// MaxLength returns the configured cap.
func (g *PromptGuard) MaxLength() int {
	return g.maxLength
}

// Sanitize normalises and truncates the input, then rejects it with a
// *GuardError if any injection pattern matches.
func (g *PromptGuard) Sanitize(text string) (string, error) {
	clean := strings.TrimSpace(stripControl(Normalize(text)))
	clean = TruncateRunes(clean, g.maxLength)

	if label, hit := matchInjection(clean); hit {
		preview := Preview(clean, guardPreviewRunes)
		g.logger.Warn("prompt guard rejected input", "pattern", label, "preview", preview)
		return "", &GuardError{Label: label, Preview: preview}
	}
	return clean, nil
}

// ContainsInjection reports whether text matches any pattern.
func ContainsInjection(text string) bool {
	_, hit := matchInjection(Normalize(text))
	return hit
}

func matchInjection(text string) (string, bool) {
	for _, r := range injectionPatterns {
		if r.re.MatchString(text) {
			return r.label, true
		}
	}
	return "", false
}
