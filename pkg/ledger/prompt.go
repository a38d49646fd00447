package ledger

import (
	"bufio"
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PromptHeader opens every ledger prompt block.
const PromptHeader = "=== SỔ CÁI THẾ GIỚI: đã xác lập, tuyệt đối không mâu thuẫn ==="

// DefaultPromptChars is the default size budget of the block, in runes.
const DefaultPromptChars = 1500

const (
	relSeparator    = " || quan hệ: "
	truncatedFormat = "... (đã lược bỏ %d mục cũ)"
)

type promptEntry struct {
	line    string
	chapter int
	seq     int
}

// ToPromptString renders the ledger for agent prompts within maxChars runes.
// Active entities come first grouped by type, then inactive entities, then
// non-superseded facts. On overflow the oldest entries are dropped, the
// header is kept and a truncation marker is appended.
func (l *Ledger) ToPromptString(maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultPromptChars
	}

	var entries []promptEntry
	seq := 0
	add := func(line string, chapter int) {
		entries = append(entries, promptEntry{line: line, chapter: chapter, seq: seq})
		seq++
	}

	for _, active := range []bool{true, false} {
		for _, typ := range entityTypeOrder {
			for _, e := range l.Entities {
				if e.Type != typ || (e.Status == StatusActive) != active {
					continue
				}
				add(formatEntity(e), e.FirstChapter)
			}
		}
	}
	for _, f := range l.Facts {
		if f.Superseded {
			continue
		}
		add(formatFact(f), f.Chapter)
	}

	dropped := 0
	for len(entries) > 0 && blockLen(entries, dropped) > maxChars {
		oldest := 0
		for i, e := range entries {
			o := entries[oldest]
			if e.chapter < o.chapter || (e.chapter == o.chapter && e.seq < o.seq) {
				oldest = i
			}
		}
		entries = slices.Delete(entries, oldest, oldest+1)
		dropped++
	}

	var b strings.Builder
	b.WriteString(PromptHeader)
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(e.line)
	}
	if dropped > 0 {
		b.WriteByte('\n')
		fmt.Fprintf(&b, truncatedFormat, dropped)
	}
	return b.String()
}

func blockLen(entries []promptEntry, dropped int) int {
	n := utf8.RuneCountInString(PromptHeader)
	for _, e := range entries {
		n += 1 + utf8.RuneCountInString(e.line)
	}
	if dropped > 0 {
		n += 1 + utf8.RuneCountInString(fmt.Sprintf(truncatedFormat, dropped))
	}
	return n
}

func formatEntity(e Entity) string {
	line := fmt.Sprintf("- [%s|%s] %s (%s) ch%d: %s", e.Type, e.Status, e.Name, e.ID, e.FirstChapter, e.Description)
	if len(e.Relationships) > 0 {
		var rels []string
		for _, k := range slices.Sorted(maps.Keys(e.Relationships)) {
			rels = append(rels, k+"="+e.Relationships[k])
		}
		line += relSeparator + strings.Join(rels, ", ")
	}
	return line
}

func formatFact(f Fact) string {
	return fmt.Sprintf("* [%s|ch%d|%s] %s", f.ID, f.Chapter, strings.Join(f.EntityIDs, ","), f.Statement)
}

var (
	entityLine = regexp.MustCompile(`^- \[(\w+)\|(\w+)\] (.+) \(([a-z0-9-]+)\) ch(\d+): (.*)$`)
	factLine   = regexp.MustCompile(`^\* \[([^|\]]+)\|ch(\d+)\|([^\]]*)\] (.*)$`)
)

// ParsePromptString reconstructs the entities and facts rendered by
// ToPromptString. The truncation marker is ignored.
func ParsePromptString(block string) ([]Entity, []Fact, error) {
	sc := bufio.NewScanner(strings.NewReader(block))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() || sc.Text() != PromptHeader {
		return nil, nil, fmt.Errorf("ledger block: missing header")
	}

	var entities []Entity
	var facts []Fact
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "- "):
			e, err := parseEntity(line)
			if err != nil {
				return nil, nil, err
			}
			entities = append(entities, e)
		case strings.HasPrefix(line, "* "):
			m := factLine.FindStringSubmatch(line)
			if m == nil {
				return nil, nil, fmt.Errorf("ledger block: malformed fact line %q", line)
			}
			ch, _ := strconv.Atoi(m[2])
			f := Fact{ID: m[1], Chapter: ch, Statement: m[4]}
			if m[3] != "" {
				f.EntityIDs = strings.Split(m[3], ",")
			}
			facts = append(facts, f)
		case strings.HasPrefix(line, "..."), strings.TrimSpace(line) == "":
		default:
			return nil, nil, fmt.Errorf("ledger block: unexpected line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("ledger block: %w", err)
	}
	return entities, facts, nil
}

func parseEntity(line string) (Entity, error) {
	rels := ""
	if i := strings.Index(line, relSeparator); i >= 0 {
		line, rels = line[:i], line[i+len(relSeparator):]
	}
	m := entityLine.FindStringSubmatch(line)
	if m == nil {
		return Entity{}, fmt.Errorf("ledger block: malformed entity line %q", line)
	}
	ch, _ := strconv.Atoi(m[5])
	e := Entity{
		Type:         EntityType(m[1]),
		Status:       Status(m[2]),
		Name:         m[3],
		ID:           m[4],
		FirstChapter: ch,
		Description:  m[6],
	}
	if rels != "" {
		e.Relationships = map[string]string{}
		for _, pair := range strings.Split(rels, ", ") {
			k, v, ok := strings.Cut(pair, "=")
			if ok {
				e.Relationships[k] = v
			}
		}
	}
	return e, nil
}

// SortEntities orders entities by id; used to compare reconstructed sets.
func SortEntities(es []Entity) {
	slices.SortFunc(es, func(a, b Entity) int { return cmp.Compare(a.ID, b.ID) })
}
