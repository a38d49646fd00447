package progression

import (
	"fmt"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

// Requirement gates one rank. Numbers never reach the player; only the title does.
type Requirement struct {
	Rank         int
	Title        string
	MinChapters  int
	MinDQS       float64
	MinCoherence float64
}

// Ladder is the rank ladder, indexed by rank-1.
var Ladder = []Requirement{
	{Rank: 1, Title: "Phàm Nhân"},
	{Rank: 2, Title: "Khai Linh", MinChapters: 5, MinDQS: 50, MinCoherence: 40},
	{Rank: 3, Title: "Ngưng Khí", MinChapters: 12, MinDQS: 55, MinCoherence: 40},
	{Rank: 4, Title: "Trúc Cơ", MinChapters: 20, MinDQS: 60, MinCoherence: 45},
	{Rank: 5, Title: "Kim Đan", MinChapters: 30, MinDQS: 62, MinCoherence: 45},
	{Rank: 6, Title: "Nguyên Anh", MinChapters: 42, MinDQS: 65, MinCoherence: 50},
	{Rank: 7, Title: "Hóa Thần", MinChapters: 56, MinDQS: 68, MinCoherence: 50},
	{Rank: 8, Title: "Hợp Đạo", MinChapters: 72, MinDQS: 70, MinCoherence: 55},
	{Rank: 9, Title: "Siêu Thoát", MinChapters: 90, MinDQS: 75, MinCoherence: 60},
}

// MinChaptersBetweenRanks spaces out rank-ups that come without a breakthrough.
const MinChaptersBetweenRanks = 4

// MaxRank is the top of the ladder.
func MaxRank() int {
	return len(Ladder)
}

// TitleFor returns the title of a rank.
func TitleFor(rank int) string {
	if rank < 1 || rank > len(Ladder) {
		return ""
	}
	return Ladder[rank-1].Title
}

// RankUp describes a pending promotion.
type RankUp struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Check decides whether the player earns the next rank. A breakthrough this
// chapter only needs the chapter requirement; otherwise every threshold and
// the spacing rule apply.
func Check(p *player.State, breakthrough bool) (RankUp, bool) {
	current := max(p.Progression.Rank, 1)
	if current >= MaxRank() {
		return RankUp{}, false
	}
	next := Ladder[current]
	if p.TotalChapters < next.MinChapters {
		return RankUp{}, false
	}

	up := RankUp{From: current, To: next.Rank, Title: next.Title}
	if breakthrough {
		up.Reason = "breakthrough"
		return up, true
	}
	if p.TotalChapters-p.Progression.LastRankUpChapter < MinChaptersBetweenRanks {
		return RankUp{}, false
	}
	if p.DecisionQualityScore < next.MinDQS || p.IdentityCoherence < next.MinCoherence {
		return RankUp{}, false
	}
	up.Reason = fmt.Sprintf("steady growth over %d chapters", p.TotalChapters)
	return up, true
}

// Apply promotes the player in place.
func Apply(p *player.State, up RankUp, chapter int, breakthrough bool) {
	p.Progression.Rank = up.To
	p.Progression.RankTitle = up.Title
	p.Progression.Floor = max(p.Progression.Floor, up.To)
	p.Progression.LastRankUpChapter = chapter
	if breakthrough {
		p.Progression.BreakthroughCount++
	}
}
