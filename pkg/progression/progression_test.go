package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

func veteran(chapters int) *player.State {
	p := player.New("u", "n", player.ArchetypeTactician, player.SeedIdentity{}, nil)
	p.TotalChapters = chapters
	p.DecisionQualityScore = 80
	return p
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name         string
		setup        func() *player.State
		breakthrough bool
		wantOK       bool
		wantTo       int
	}{
		{"too early", func() *player.State { return veteran(3) }, false, false, 0},
		{"steady growth", func() *player.State { return veteran(5) }, false, true, 2},
		{"low dqs", func() *player.State {
			p := veteran(6)
			p.DecisionQualityScore = 10
			return p
		}, false, false, 0},
		{"low dqs but breakthrough", func() *player.State {
			p := veteran(6)
			p.DecisionQualityScore = 10
			return p
		}, true, true, 2},
		{"spacing rule", func() *player.State {
			p := veteran(13)
			p.Progression.Rank = 2
			p.Progression.LastRankUpChapter = 11
			return p
		}, false, false, 0},
		{"spacing waived by breakthrough", func() *player.State {
			p := veteran(13)
			p.Progression.Rank = 2
			p.Progression.LastRankUpChapter = 11
			return p
		}, true, true, 3},
		{"top of ladder", func() *player.State {
			p := veteran(200)
			p.Progression.Rank = MaxRank()
			return p
		}, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, ok := Check(tt.setup(), tt.breakthrough)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTo, up.To)
		})
	}
}

func TestApply(t *testing.T) {
	p := veteran(5)
	up, ok := Check(p, true)
	require.True(t, ok)

	Apply(p, up, 5, true)
	assert.Equal(t, 2, p.Progression.Rank)
	assert.Equal(t, "Khai Linh", p.Progression.RankTitle)
	assert.Equal(t, 2, p.Progression.Floor)
	assert.Equal(t, 1, p.Progression.BreakthroughCount)
	assert.Equal(t, 5, p.Progression.LastRankUpChapter)
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Phàm Nhân", TitleFor(1))
	assert.Equal(t, "Siêu Thoát", TitleFor(9))
	assert.Empty(t, TitleFor(0))
	assert.Empty(t, TitleFor(10))
}
