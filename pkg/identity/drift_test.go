package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/isekai-engine/pkg/player"
)

func valuedPlayer() *player.State {
	return player.New("u", "Minh", player.ArchetypeVanguard, player.SeedIdentity{
		CoreValues: []string{"danh dự", "lòng trung thành", "tự do"},
	}, nil)
}

func TestApplyDrift(t *testing.T) {
	tests := []struct {
		name          string
		drifts        []string
		emerging      string
		wantActive    []string
		wantAbandoned int
	}{
		{name: "no drift", drifts: []string{"", ""}, wantActive: []string{"danh dự", "lòng trung thành", "tự do"}},
		{name: "one major drops the first value", drifts: []string{DriftMajor}, wantActive: []string{"lòng trung thành", "tự do"}, wantAbandoned: 1},
		{name: "two majors drop two", drifts: []string{DriftMajor, DriftMajor}, wantActive: []string{"tự do"}, wantAbandoned: 2},
		{name: "three minors are not enough", drifts: []string{DriftMinor, DriftMinor, DriftMinor}, wantActive: []string{"danh dự", "lòng trung thành", "tự do"}},
		{name: "four minors are", drifts: []string{DriftMinor, DriftMinor, DriftMinor, DriftMinor}, wantActive: []string{"lòng trung thành", "tự do"}, wantAbandoned: 1},
		{name: "major with an emerging value", drifts: []string{DriftMajor}, emerging: "quyền lực", wantActive: []string{"lòng trung thành", "tự do", "quyền lực"}, wantAbandoned: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valuedPlayer()
			abandoned := 0
			for _, d := range tt.drifts {
				abandoned += len(ApplyDrift(p, d, tt.emerging).Abandoned)
			}
			assert.Equal(t, tt.wantActive, p.Current.ActiveValues)
			assert.Equal(t, tt.wantAbandoned, abandoned)
			assert.Equal(t, []string{"danh dự", "lòng trung thành", "tự do"}, p.Seed.CoreValues, "seed identity is frozen")
		})
	}
}

func TestApplyDrift_BiasIsLatent(t *testing.T) {
	p := valuedPlayer()
	sh := ApplyDrift(p, DriftMinor, "quyền lực")
	assert.True(t, sh.Empty())
	assert.Equal(t, -0.25, p.Latent.DriftBias["danh dự"])
	assert.Equal(t, 0.25, p.Latent.DriftBias["quyền lực"])
}

func TestApplyDrift_NothingLeftToLose(t *testing.T) {
	p := valuedPlayer()
	p.Current.ActiveValues = nil
	sh := ApplyDrift(p, DriftMajor, "")
	assert.True(t, sh.Empty())
}

func TestUpdateReputation(t *testing.T) {
	p := valuedPlayer()

	p.Notoriety = 30
	assert.Equal(t, []string{"có tiếng"}, UpdateReputation(p, 20, false, ""))

	p.Notoriety = 80
	assert.Equal(t, []string{"lừng danh", "khét tiếng"}, UpdateReputation(p, 30, false, ""))

	added := UpdateReputation(p, 80, true, player.DNAShadow)
	assert.Equal(t, []string{"bóng ma"}, added)
	assert.Empty(t, UpdateReputation(p, 80, true, player.DNAShadow), "tags are not repeated")

	require.Len(t, p.Current.ReputationTags, 4)
	assert.Equal(t, "biến số", UpdateReputation(p, 80, true, "")[0])
}
