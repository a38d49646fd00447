package archetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

func TestForms_Complete(t *testing.T) {
	count := 0
	seen := map[string]bool{}
	for _, origin := range player.Archetypes {
		paths, ok := Forms[origin]
		require.True(t, ok, origin)
		for _, path := range []Path{PathAligned, PathDiverged, PathReputation} {
			f, ok := paths[path]
			require.True(t, ok, "%s/%s", origin, path)
			assert.Equal(t, string(origin)+"_"+string(path), f.ID)
			assert.NotEmpty(t, f.Name)
			assert.False(t, seen[f.Name], "duplicate name %s", f.Name)
			seen[f.Name] = true
			count++
		}
	}
	assert.Equal(t, 18, count)
}

func ready(archetype player.Archetype) *player.State {
	p := player.New("u", "n", archetype, player.SeedIdentity{
		CoreValues: []string{"trung thành", "công bằng", "tự do"},
	}, nil)
	p.Progression.Rank = 3
	p.TotalChapters = 25
	p.DecisionQualityScore = 60
	p.EchoTrace = 30
	return p
}

func TestCheck_Gates(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name   string
		mutate func(p *player.State)
	}{
		{"rank", func(p *player.State) { p.Progression.Rank = 2 }},
		{"chapters", func(p *player.State) { p.TotalChapters = 10 }},
		{"dqs", func(p *player.State) { p.DecisionQualityScore = 40 }},
		{"echo", func(p *player.State) { p.EchoTrace = 5 }},
		{"pending", func(p *player.State) { p.ArchetypeEvolution.TransmutationPending = true }},
		{"transmuted", func(p *player.State) { p.ArchetypeEvolution.Stage = player.EvolutionStageTransmuted }},
		{"unsettled", func(p *player.State) { p.Current.ActiveValues = []string{"trung thành", "công bằng"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ready(player.ArchetypeSeeker)
			tt.mutate(p)
			ev := Check(p, th)
			assert.False(t, ev.Ready)
			assert.NotEmpty(t, ev.Reason)
		})
	}
}

func TestCheck_Paths(t *testing.T) {
	th := DefaultThresholds()

	p := ready(player.ArchetypeSeeker)
	ev := Check(p, th)
	require.True(t, ev.Ready)
	assert.Equal(t, "seeker_aligned", ev.Form.ID)

	p = ready(player.ArchetypeVanguard)
	p.Current.ActiveValues = []string{"tham vọng", "báo thù"}
	ev = Check(p, th)
	require.True(t, ev.Ready)
	assert.Equal(t, PathDiverged, ev.Form.Path)
	assert.Equal(t, "Kẻ Phá Xiềng", ev.Form.Name)

	p = ready(player.ArchetypeWanderer)
	p.Current.ReputationTags = []string{"kẻ cứu làng", "người lạ", "thợ săn"}
	p.Notoriety = 60
	ev = Check(p, th)
	require.True(t, ev.Ready)
	assert.Equal(t, "wanderer_reputation", ev.Form.ID)
}

func TestValueOverlap(t *testing.T) {
	seed := player.SeedIdentity{CoreValues: []string{"A", "b"}}
	assert.Equal(t, 1.0, ValueOverlap(seed, player.CurrentIdentity{ActiveValues: []string{" a ", "B"}}))
	assert.Equal(t, 0.5, ValueOverlap(seed, player.CurrentIdentity{ActiveValues: []string{"a"}}))
	assert.Equal(t, 1.0, ValueOverlap(player.SeedIdentity{}, player.CurrentIdentity{}))
}

func TestMarkPendingAndApply(t *testing.T) {
	p := ready(player.ArchetypeTactician)
	_, err := Apply(p, 26)
	assert.Error(t, err)

	ev := Check(p, DefaultThresholds())
	MarkPending(p, ev)
	assert.True(t, p.ArchetypeEvolution.TransmutationPending)
	assert.False(t, Check(p, DefaultThresholds()).Ready)

	f, err := Apply(p, 26)
	require.NoError(t, err)
	assert.Equal(t, "Kỳ Thủ Thiên Cơ", f.Name)
	assert.Equal(t, player.EvolutionStageTransmuted, p.ArchetypeEvolution.Stage)
	assert.Equal(t, 26, p.ArchetypeEvolution.TransmutedAtChapter)
	assert.Empty(t, p.ArchetypeEvolution.PendingForm)
	assert.Contains(t, p.Current.ReputationTags, f.Name)
}
