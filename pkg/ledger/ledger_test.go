package ledger

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLedger() *Ledger {
	l := New(uuid.New())
	l.AddEntity(Entity{Type: EntityNPC, Name: "Lão Trần", FirstChapter: 1, Description: "Ông lão bán thuốc ở chợ phía đông.", Status: StatusActive,
		Relationships: map[string]string{"cho-dong": "chủ sạp", "tieu-linh": "ân nhân"}})
	l.AddEntity(Entity{Type: EntityLocation, Name: "Chợ Đông", FirstChapter: 1, Description: "Khu chợ ồn ào cạnh cổng thành."})
	l.AddEntity(Entity{Type: EntityNPC, Name: "Tiểu Linh", FirstChapter: 2, Description: "Cô bé mồ côi theo chân nhân vật chính.", Status: StatusDeparted})
	l.AddEntity(Entity{Type: EntityObject, Name: "Ngọc Bội Xanh", FirstChapter: 3, Description: "Mảnh ngọc phát sáng khi gần linh mạch."})
	l.AddFact("Cổng thành đóng lúc hoàng hôn.", 1, "simulator", []string{"cho-dong"})
	l.AddFact("Lão Trần từng là kiếm khách.", 2, "simulator", []string{"lao-tran"})
	return l
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Lão Trần":            "lao-tran",
		"Đền Thờ Đá Đỏ":       "den-tho-da-do",
		"  Rừng  Ương  ":      "rung-uong",
		"Thành Đại Môn (cũ)": "thanh-dai-mon-cu",
		"!!!":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestAddEntity_Idempotent(t *testing.T) {
	l := sampleLedger()
	before := l.EntityCount()

	e := Entity{Type: EntityNPC, Name: "Lão Trần", Description: "mô tả khác"}
	assert.False(t, l.AddEntity(e))
	assert.False(t, l.AddEntity(e))
	assert.Equal(t, before, l.EntityCount())

	got, ok := l.Entity("lao-tran")
	require.True(t, ok)
	assert.Equal(t, "Ông lão bán thuốc ở chợ phía đông.", got.Description, "anchor description is fixed")
}

func TestAddEntity_Defaults(t *testing.T) {
	l := New(uuid.New())
	assert.True(t, l.AddEntity(Entity{Type: "dragon", Name: "Hắc Long", Description: "  rồng\nđen  "}))
	e, _ := l.Entity("hac-long")
	assert.Equal(t, EntityObject, e.Type)
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, "rồng đen", e.Description)

	assert.False(t, l.AddEntity(Entity{Name: "   "}))
}

func TestSetStatus(t *testing.T) {
	l := sampleLedger()
	require.NoError(t, l.SetStatus("lao-tran", StatusDestroyed))
	e, _ := l.Entity("lao-tran")
	assert.Equal(t, StatusDestroyed, e.Status)

	assert.Error(t, l.SetStatus("missing", StatusActive))
	assert.Error(t, l.SetStatus("lao-tran", "ghost"))
}

func TestFacts(t *testing.T) {
	l := sampleLedger()
	_, added := l.AddFact("cổng thành đóng lúc hoàng hôn.", 4, "simulator", nil)
	assert.False(t, added, "equivalent active fact is not duplicated")

	require.NoError(t, l.Supersede("f1"))
	assert.Len(t, l.Facts, 2, "superseded facts stay stored")
	assert.Len(t, l.ActiveFacts(), 1)
	assert.NotContains(t, l.ToPromptString(DefaultPromptChars), "hoàng hôn")

	f, added := l.AddFact("Cổng thành đóng lúc hoàng hôn.", 5, "simulator", nil)
	assert.True(t, added)
	assert.Equal(t, "f3", f.ID)
}

func TestToPromptString_Order(t *testing.T) {
	out := sampleLedger().ToPromptString(DefaultPromptChars)
	lines := strings.Split(out, "\n")

	require.Equal(t, PromptHeader, lines[0])
	require.Len(t, lines, 7)
	assert.Contains(t, lines[1], "[npc|active] Lão Trần (lao-tran)")
	assert.Contains(t, lines[2], "[location|active] Chợ Đông")
	assert.Contains(t, lines[3], "[object|active] Ngọc Bội Xanh")
	assert.Contains(t, lines[4], "[npc|departed] Tiểu Linh")
	assert.True(t, strings.HasPrefix(lines[5], "* [f1|ch1|cho-dong]"))
	assert.True(t, strings.HasPrefix(lines[6], "* [f2|ch2|lao-tran]"))
}

func TestToPromptString_TruncatesOldestFirst(t *testing.T) {
	l := New(uuid.New())
	for i := 1; i <= 40; i++ {
		l.AddFact(fmt.Sprintf("Sự kiện thứ %d đã xảy ra ở làng.", i), i, "simulator", nil)
	}

	out := l.ToPromptString(400)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 400)
	assert.True(t, strings.HasPrefix(out, PromptHeader))
	assert.Contains(t, out, "đã lược bỏ")
	assert.Contains(t, out, "Sự kiện thứ 40 ")
	assert.NotContains(t, out, "Sự kiện thứ 1 ")

	tiny := l.ToPromptString(10)
	assert.True(t, strings.HasPrefix(tiny, PromptHeader), "header always survives")
}

func TestPromptRoundTrip(t *testing.T) {
	l := sampleLedger()
	entities, facts, err := ParsePromptString(l.ToPromptString(DefaultPromptChars))
	require.NoError(t, err)

	want := l.Clone().Entities
	SortEntities(want)
	SortEntities(entities)
	if diff := cmp.Diff(want, entities); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, facts, 2)
	for i, f := range l.ActiveFacts() {
		assert.Equal(t, f.ID, facts[i].ID)
		assert.Equal(t, f.Statement, facts[i].Statement)
		assert.Equal(t, f.Chapter, facts[i].Chapter)
		assert.Equal(t, f.EntityIDs, facts[i].EntityIDs)
	}
}

func TestParsePromptString_Errors(t *testing.T) {
	_, _, err := ParsePromptString("no header")
	assert.Error(t, err)

	_, _, err = ParsePromptString(PromptHeader + "\n- broken entity")
	assert.Error(t, err)
}

func TestClone_Independent(t *testing.T) {
	l := sampleLedger()
	c := l.Clone()
	c.Entities[0].Relationships["x"] = "y"
	c.Facts[0].EntityIDs[0] = "changed"
	c.AddEntity(Entity{Name: "Mới"})

	assert.NotContains(t, l.Entities[0].Relationships, "x")
	assert.Equal(t, "cho-dong", l.Facts[0].EntityIDs[0])
	assert.Equal(t, 4, l.EntityCount())
}
