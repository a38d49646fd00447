package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	want := []string{"onboard", "start", "continue", "chapters", "enqueue", "migrate-scenes", "reembed-skills", "validate-content"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestContinueRequestFlags(t *testing.T) {
	t.Cleanup(func() { continueChoice, continueText = "", "" })
	id := uuid.New()

	continueChoice, continueText = " ch1_c2 ", ""
	req, err := continueRequest(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, req.StoryID)
	assert.Equal(t, "ch1_c2", req.ChoiceID)

	continueChoice, continueText = "", "Tôi bước vào rừng"
	req, err = continueRequest(id.String())
	require.NoError(t, err)
	assert.Equal(t, "Tôi bước vào rừng", req.FreeText)

	_, err = continueRequest("not-a-uuid")
	assert.Error(t, err)

	continueChoice, continueText = "", ""
	_, err = continueRequest(id.String())
	assert.Error(t, err)
}
