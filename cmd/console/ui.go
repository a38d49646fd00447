package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/isekai-engine/internal/worker"
	"github.com/jwebster45206/isekai-engine/pkg/chat"
	"github.com/jwebster45206/isekai-engine/pkg/player"
	"github.com/jwebster45206/isekai-engine/pkg/storage"
	"github.com/jwebster45206/isekai-engine/pkg/story"
)

const PlaceHolderText = "Chọn 1-3, hoặc tự viết hành động..."

type entryKind int

const (
	entryPlayer entryKind = iota
	entryChapter
	entryInfo
	entryError
)

type entry struct {
	kind    entryKind
	text    string
	title   string
	number  int
	choices []story.Choice
}

// ConsoleUI is the BubbleTea model that runs the UI.
type ConsoleUI struct {
	ctx          context.Context
	proc         *worker.Processor
	store        storage.Storage
	story        *story.Story
	player       *player.State
	entries      []entry
	choices      []story.Choice
	lastProse    string
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	showQuitModal bool
	progressTick  int
}

type chapterMsg struct {
	response *chat.ContinueResponse
	err      error
}

type playerMsg struct {
	player *player.State
	err    error
}

type historyMsg struct {
	chapters []*story.Chapter
	err      error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func NewConsoleUI(ctx context.Context, proc *worker.Processor, store storage.Storage, st *story.Story) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxFreeTextLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		ctx:          ctx,
		proc:         proc,
		store:        store,
		story:        st,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadHistory(), m.refreshPlayer())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatWidth, metaWidth := m.panelWidths()
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			req := m.continueRequest(input)
			label := input
			if req.ChoiceID != "" {
				label = m.choiceText(req.ChoiceID)
			}
			m.entries = append(m.entries, entry{kind: entryPlayer, text: label})
			m.loading = true
			m.progressTick = 0
			m.writeChatContent()
			return m, tea.Batch(m.sendContinue(req), progressTick())
		}

	case historyMsg:
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
		}
		for _, c := range msg.chapters {
			if c.FreeInput != "" {
				m.entries = append(m.entries, entry{kind: entryPlayer, text: c.FreeInput})
			} else if c.ChosenChoice != nil {
				m.entries = append(m.entries, entry{kind: entryPlayer, text: c.ChosenChoice.Text})
			}
			m.addChapter(c.ChapterNumber, c.Title, c.Prose, c.Choices)
		}
		if len(msg.chapters) == 0 {
			m.entries = append(m.entries, entry{kind: entryInfo,
				text: "Câu chuyện chưa bắt đầu. Hãy viết hành động đầu tiên của bạn."})
		}
		m.writeChatContent()

	case chapterMsg:
		m.loading = false
		if msg.err != nil {
			text := msg.err.Error()
			if errors.Is(msg.err, worker.ErrDailyLimit) {
				text = "Bạn đã dùng hết lượt hôm nay."
			}
			m.entries = append(m.entries, entry{kind: entryError, text: text})
		} else {
			r := msg.response
			m.addChapter(r.ChapterNumber, r.Title, r.Prose, r.Choices)
		}
		m.writeChatContent()
		return m, m.refreshPlayer()

	case playerMsg:
		if msg.err == nil {
			m.player = msg.player
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *ConsoleUI) addChapter(number int, title, prose string, choices []story.Choice) {
	m.entries = append(m.entries, entry{kind: entryChapter, number: number, title: title, text: prose, choices: choices})
	m.choices = choices
	m.lastProse = prose
}

// continueRequest maps "1".."3" to the offered choices; anything else is
// free text.
func (m ConsoleUI) continueRequest(input string) chat.ContinueRequest {
	req := chat.ContinueRequest{StoryID: m.story.ID, PlayerID: m.story.PlayerID}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(m.choices) {
		req.ChoiceID = m.choices[n-1].ID
		return req
	}
	req.FreeText = input
	return req
}

func (m ConsoleUI) choiceText(id string) string {
	for _, c := range m.choices {
		if c.ID == id {
			return c.Text
		}
	}
	return id
}

func (m ConsoleUI) panelWidths() (chatWidth, metaWidth int) {
	chatWidth = int(float64(m.width)*0.72) - 4
	return chatWidth, m.width - chatWidth - 6
}

// writeChatContent rebuilds the story pane for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	width := max(m.chatViewport.Width-6, 20)

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.storyTitle())) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.entries {
		switch e.kind {
		case entryPlayer:
			content.WriteString(userStyle.Render("Bạn: ") + wordwrap.String(e.text, width-5) + "\n\n")
		case entryChapter:
			content.WriteString(formatChapter(e, width) + "\n")
		case entryInfo:
			content.WriteString(promptStyle.Render(wordwrap.String(e.text, width)) + "\n\n")
		case entryError:
			content.WriteString(errorStyle.Render("Lỗi: "+e.text) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) storyTitle() string {
	if m.story.Title != "" {
		return m.story.Title
	}
	return "Isekai Engine"
}

func formatChapter(e entry, width int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Chương %d: %s", e.number, e.title)) + "\n\n")
	for _, para := range strings.Split(e.text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString(wordwrap.String(para, width) + "\n\n")
	}
	for i, c := range e.choices {
		line := fmt.Sprintf("%d. %s", i+1, c.Text)
		if c.ConsequenceHint != "" {
			line += promptStyle.Render(" (" + c.ConsequenceHint + ")")
		}
		sb.WriteString(choiceStyle.Render(wordwrap.String(line, width)) + "\n")
	}
	return sb.String()
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("NHÂN VẬT") + "\n\n")

	p := m.player
	if p == nil {
		content.WriteString("Đang tải...\n")
		return content.String()
	}

	content.WriteString(p.Name + "\n")
	content.WriteString(fmt.Sprintf("%s · %s\n\n", p.Progression.RankTitle, p.Archetype))
	content.WriteString(fmt.Sprintf("Tầng: %d\n", max(p.Progression.Floor, 1)))
	content.WriteString(fmt.Sprintf("Chương: %d\n\n", p.TotalChapters))

	content.WriteString(fmt.Sprintf("Bản ngã:  %5.1f\n", p.IdentityCoherence))
	content.WriteString(fmt.Sprintf("Bất ổn:   %5.1f\n", p.Instability))
	content.WriteString(fmt.Sprintf("Đột phá:  %5.1f\n", p.BreakthroughMeter))
	content.WriteString(fmt.Sprintf("Thiên mệnh:%5.1f\n", p.FateBuffer))
	content.WriteString(fmt.Sprintf("Danh vọng:%5.1f\n\n", p.Notoriety))

	if p.Skill != nil {
		content.WriteString("Kỹ năng:\n")
		content.WriteString(fmt.Sprintf("%s (%s)\n\n", p.Skill.Name, p.Skill.Growth.Stage))
	}
	if w := p.PrimaryWeapon(); w != nil {
		content.WriteString("Vũ khí:\n")
		content.WriteString(w.Name + "\n\n")
	}

	content.WriteString("Lệnh:\n")
	content.WriteString("• 1-3: Chọn\n")
	content.WriteString("• /copy: Chép chương\n")
	content.WriteString("• /help: Trợ giúp\n")
	content.WriteString("• Ctrl+C: Thoát\n")
	return content.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.entries = append(m.entries, entry{kind: entryInfo, text: "Gõ số 1-3 để chọn một lựa chọn, hoặc tự viết hành động. " +
			"/copy chép chương mới nhất, /quit để thoát."})
	case "/copy":
		if m.lastProse == "" {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Chưa có chương nào."})
		} else if err := clipboard.WriteAll(m.lastProse); err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: err.Error()})
		} else {
			m.entries = append(m.entries, entry{kind: entryInfo, text: "Đã chép chương mới nhất."})
		}
	case "/quit":
		m.showQuitModal = true
		return m, nil
	default:
		m.entries = append(m.entries, entry{kind: entryError, text: "lệnh không rõ: " + input})
	}
	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) sendContinue(req chat.ContinueRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.proc.Process(m.ctx, req)
		return chapterMsg{resp, err}
	}
}

func (m ConsoleUI) refreshPlayer() tea.Cmd {
	return func() tea.Msg {
		p, err := m.store.LoadPlayer(m.ctx, m.story.PlayerID)
		return playerMsg{p, err}
	}
}

func (m ConsoleUI) loadHistory() tea.Cmd {
	return func() tea.Msg {
		chapters, err := m.store.ListChapters(m.ctx, m.story.ID)
		return historyMsg{chapters, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Thoát?"))
	content.WriteString("\n\n")
	content.WriteString("Tiến trình đã được lưu sau mỗi chương.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Y để thoát, N để tiếp tục"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if !m.ready || m.width == 0 {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	chatWidth, metaWidth := m.panelWidths()

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar animates while the agents are working
func (m ConsoleUI) renderProgressBar() string {
	usable := min(max(m.chatViewport.Width-6, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
