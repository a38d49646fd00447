package chat

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestContinueRequest_Validate(t *testing.T) {
	id := mustParseUUID("550e8400-e29b-41d4-a716-446655440000")
	tests := []struct {
		name    string
		req     ContinueRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "choice id",
			req:  ContinueRequest{StoryID: id, ChoiceID: "ch1_c2"},
		},
		{
			name: "free text",
			req:  ContinueRequest{StoryID: id, FreeText: "Tôi lặng lẽ rời khỏi làng."},
		},
		{
			name: "free text at max length in runes",
			req:  ContinueRequest{StoryID: id, FreeText: strings.Repeat("ă", MaxFreeTextLength)},
		},
		{
			name:    "free text too long",
			req:     ContinueRequest{StoryID: id, FreeText: strings.Repeat("a", MaxFreeTextLength+1)},
			wantErr: true,
			errMsg:  "exceeds maximum length",
		},
		{
			name:    "both set",
			req:     ContinueRequest{StoryID: id, ChoiceID: "ch1_c1", FreeText: "x"},
			wantErr: true,
			errMsg:  "mutually exclusive",
		},
		{
			name:    "neither set",
			req:     ContinueRequest{StoryID: id, FreeText: "   "},
			wantErr: true,
			errMsg:  "required",
		},
		{
			name:    "missing story",
			req:     ContinueRequest{ChoiceID: "ch1_c1"},
			wantErr: true,
			errMsg:  "story_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func mustParseUUID(s string) uuid.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}
