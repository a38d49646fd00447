package textfilter

import (
	"fmt"
	"strings"
)

// Severity ranks a canon violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// CanonScanLimit is how many runes of prose the canon guard reads.
const CanonScanLimit = 5000

// Violation is one canon rule hit.
type Violation struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Excerpt  string   `json:"excerpt"`
}

type canonRule struct {
	rule
	severity Severity
	message  string
}

// Archon names. Vietnamese words are matched without \b, which only knows
// ASCII word characters.
const archons = `(Aethis|Vorhal|Seraphine|Kalzuur|Nyxara|Orveth)`

var canonRules = func() []canonRule {
	defs := []struct {
		id, pattern string
		severity    Severity
		message     string
	}{
		{
			"archon_direct_appearance",
			archons + `[^.!?\n]{0,40}(xuất\s+hiện|hiện\s+ra|hiện\s+thân|giáng\s+lâm|bước\s+ra|đứng\s+trước|trước\s+mặt)`,
			SeverityCritical,
			"Các Archon không bao giờ xuất hiện trực tiếp. Chỉ thể hiện ý chí của họ qua dấu hiệu, dư âm hoặc kẻ đại diện.",
		},
		{
			"archon_direct_speech",
			archons + `[^.!?\n]{0,30}(nói|phán|lên\s+tiếng|cất\s+tiếng|thì\s+thầm|đáp)\s*[:"“«]`,
			SeverityCritical,
			"Archon không nói chuyện trực tiếp với nhân vật. Thay lời thoại bằng điềm báo hoặc cảm giác.",
		},
		{
			"veiled_will_identity_reveal",
			`(Ý\s+Chí\s+(Ẩn\s+Mặt|Che\s+Giấu|Vô\s+Danh)|Veiled\s+Will)[^.!?\n]{0,60}(chính\s+là|thực\s+ra\s+là|danh\s+tính|tên\s+thật|lộ\s+diện)`,
			SeverityCritical,
			"Danh tính của Ý Chí Ẩn Mặt không được tiết lộ.",
		},
		{
			"game_terms_stats",
			`\b(HP|MP|XP|EXP)\b|(sức\s+mạnh|nhanh\s+nhẹn|trí\s+lực|phòng\s+thủ|tấn\s+công|điểm\s+kinh\s+nghiệm)\s*([:=]\s*[+-]?|[+-])\s*\d+|\+\s*\d+\s*(điểm|chỉ\s+số|kinh\s+nghiệm)`,
			SeverityCritical,
			"Không dùng thuật ngữ trò chơi hay con số chỉ số. Sức mạnh chỉ được thể hiện qua miêu tả.",
		},
		{
			"phase1_physical_appearance",
			archons + `[^.!?\n]{0,40}(mái\s+tóc|đôi\s+mắt|gương\s+mặt|khuôn\s+mặt|thân\s+hình|dáng\s+người|khoác\s+áo|bàn\s+tay)`,
			SeverityHigh,
			"Trong giai đoạn đầu, không miêu tả ngoại hình của Archon.",
		},
		{
			"game_terms_level_up",
			`lên\s+cấp|level\s*up|tăng\s+cấp\s+độ`,
			SeverityHigh,
			"Không dùng khái niệm 'lên cấp'. Tiến triển được kể như cảnh giới và sự thấu hiểu.",
		},
		{
			"grand_gate_seaport",
			`(Grand\s+Gate|Đại\s+Môn\s+Thành|Thành\s+Đại\s+Môn)[^.!?\n]{0,80}(cảng\s+biển|bến\s+cảng|hải\s+cảng|tàu\s+biển|bờ\s+biển)`,
			SeverityHigh,
			"Thành Đại Môn nằm sâu trong lục địa và không có cảng biển.",
		},
		{
			"tone_omnipotence",
			`bất\s+khả\s+chiến\s+bại|vô\s+địch\s+thiên\s+hạ|toàn\s+năng|không\s+ai\s+có\s+thể\s+(cản|ngăn|đánh\s+bại)`,
			SeverityHigh,
			"Nhân vật chính không toàn năng. Mọi sức mạnh đều có giới hạn và cái giá.",
		},
		{
			"tone_all_choices_safe",
			`lựa\s+chọn\s+nào\s+cũng\s+(an\s+toàn|ổn)|mọi\s+lựa\s+chọn\s+đều\s+an\s+toàn|không\s+có\s+lựa\s+chọn\s+nào\s+(sai|nguy\s+hiểm)`,
			SeverityMedium,
			"Các lựa chọn phải mang rủi ro thật sự.",
		},
		{
			"tone_info_dump",
			`bảng\s+trạng\s+thái|cửa\s+sổ\s+trạng\s+thái|status\s+window|bảng\s+chỉ\s+số|\[\s*hệ\s+thống\s*\]`,
			SeverityMedium,
			"Tránh đổ thông tin dạng bảng hệ thống. Lồng thông tin vào hành động và cảm nhận.",
		},
	}

	out := make([]canonRule, 0, len(defs))
	for _, d := range defs {
		compiled := compileRules([][2]string{{d.id, d.pattern}})[0]
		out = append(out, canonRule{rule: compiled, severity: d.severity, message: d.message})
	}
	return out
}()

// CanonReport lists every violation found in a piece of prose.
type CanonReport struct {
	Violations []Violation `json:"violations"`
}

// HasCriticalViolation reports whether any critical rule matched.
func (r CanonReport) HasCriticalViolation() bool {
	return len(r.Criticals()) > 0
}

// Criticals returns the critical violations.
func (r CanonReport) Criticals() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the non-critical violations.
func (r CanonReport) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityCritical {
			out = append(out, v)
		}
	}
	return out
}

// RuleIDs lists the ids of the given violations.
func RuleIDs(vs []Violation) []string {
	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.RuleID)
	}
	return ids
}

// FormatViolations renders violations as rewrite instructions.
func FormatViolations(vs []Violation) string {
	var b strings.Builder
	for i, v := range vs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s/%s] %s (trích: \"%s\")", v.Severity, v.RuleID, v.Message, v.Excerpt)
	}
	return b.String()
}

// CheckCanon scans the first CanonScanLimit runes of prose against the canon
// rule table. It is a pure function of its input.
func CheckCanon(prose string) CanonReport {
	text := TruncateRunes(Normalize(prose), CanonScanLimit)

	var report CanonReport
	for _, r := range canonRules {
		m := r.re.FindString(text)
		if m == "" {
			continue
		}
		report.Violations = append(report.Violations, Violation{
			RuleID:   r.label,
			Severity: r.severity,
			Message:  r.message,
			Excerpt:  Preview(m, 80),
		})
	}
	return report
}
