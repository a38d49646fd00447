package fate

// Status is the narrative protection level derived from the fate buffer.
type Status string

const (
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
	StatusMinimal Status = "minimal"
	StatusNone    Status = "none"
)

// Config holds the fate buffer tunables.
type Config struct {
	StartDecayChapter int     `yaml:"start_decay_chapter"`
	DecayRate         float64 `yaml:"decay_rate"`
	FullThreshold     float64 `yaml:"full_threshold"`
	PartialThreshold  float64 `yaml:"partial_threshold"`
	MinimalThreshold  float64 `yaml:"minimal_threshold"`
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		StartDecayChapter: 15,
		DecayRate:         2.0,
		FullThreshold:     70,
		PartialThreshold:  30,
		MinimalThreshold:  5,
	}
}

var instructions = map[Status]string{
	StatusFull: "Số phận còn che chở nhân vật chính: hậu quả nhẹ nhàng, thất bại luôn để lại lối thoát, " +
		"không có tổn thất vĩnh viễn.",
	StatusPartial: "Sự che chở của số phận đang mỏng dần: hậu quả có thật và có thể gây đau đớn, " +
		"nhưng vẫn còn cơ hội sửa sai.",
	StatusMinimal: "Số phận gần như đã buông tay: lựa chọn liều lĩnh mang hậu quả nặng nề, " +
		"tổn thất có thể kéo dài.",
	StatusNone: "Không còn sự che chở nào: thế giới phản ứng trọn vẹn và lạnh lùng với mọi lựa chọn.",
}

// Buffer evaluates the fate buffer for a chapter.
type Buffer struct {
	cfg Config
}

func New(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// StatusOf maps the buffer value to a protection level.
func (b *Buffer) StatusOf(value float64) Status {
	switch {
	case value >= b.cfg.FullThreshold:
		return StatusFull
	case value >= b.cfg.PartialThreshold:
		return StatusPartial
	case value >= b.cfg.MinimalThreshold:
		return StatusMinimal
	default:
		return StatusNone
	}
}

// GetStatus returns the status and the writer instruction for it.
func (b *Buffer) GetStatus(value float64) (Status, string) {
	s := b.StatusOf(value)
	return s, instructions[s]
}

// CalculateDecay returns the (non-positive) buffer change for a chapter.
// Before StartDecayChapter the buffer only erodes on risky choices.
func (b *Buffer) CalculateDecay(totalChapters, riskLevel int) float64 {
	if totalChapters < b.cfg.StartDecayChapter {
		if riskLevel >= 4 {
			return -1.0
		}
		return 0
	}
	return min(-(b.cfg.DecayRate * (1 + 0.2*float64(riskLevel))), 0)
}
