package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/chronicle-npc/pkg/actor"
	"github.com/jwebster45206/chronicle-npc/pkg/chat"
)

const (
	PlaceHolderText = "Say something... (quit, exit or bye to leave)"
	maxEvents       = 8
)

var titleCaser = cases.Title(language.English)

type chatLine struct {
	role string // chat.ChatRoleUser or chat.ChatRoleAgent
	text string
}

// ChatUI is the BubbleTea model for one conversation.
// https://github.com/charmbracelet/bubbletea
type ChatUI struct {
	api          *APIClient
	npcID        string
	npcName      string
	dialogue     actor.DialogueContext
	lines        []chatLine
	events       []string
	eventCh      chan SSEEvent
	eventsCtx    context.Context
	stopEvents   context.CancelFunc
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool
	err          error

	showQuitModal bool
	progressTick  int
}

type talkResponseMsg struct {
	response string
	err      error
}

type sseEventMsg SSEEvent

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	npcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Bold(true)

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
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewChatUI(api *APIClient, npcID, npcName string, dc actor.DialogueContext) ChatUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	return ChatUI{
		api:          api,
		npcID:        npcID,
		npcName:      npcName,
		dialogue:     dc.WithDefaults(),
		eventCh:      make(chan SSEEvent, 16),
		eventsCtx:    eventsCtx,
		stopEvents:   stopEvents,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
	}
}

// label turns an enum-style value such as FIRST_MEET into "First Meet".
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

func (m *ChatUI) writeMetadata() {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CONVERSATION") + "\n\n")
	content.WriteString("NPC:\n" + m.npcName + "\n" + m.npcID + "\n\n")
	content.WriteString("Type:\n" + label(m.dialogue.DialogueType) + "\n\n")
	content.WriteString("Stage:\n" + label(m.dialogue.DialogueStage) + "\n\n")
	content.WriteString("Mood:\n" + label(m.dialogue.Mood) + "\n\n")
	content.WriteString("Reputation:\n" + label(m.dialogue.PlayerReputation) + "\n\n")
	content.WriteString("Quest:\n" + label(m.dialogue.QuestState) + "\n\n")

	content.WriteString("Events:\n")
	if len(m.events) == 0 {
		content.WriteString("None yet\n")
	}
	for _, e := range m.events {
		content.WriteString("• " + e + "\n")
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Esc: Leave\n")
	m.metaViewport.SetContent(content.String())
}

// writeChatContent renders the conversation for the current viewport width
func (m *ChatUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("TALKING TO "+strings.ToUpper(m.npcName)) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for _, line := range m.lines {
		switch line.role {
		case chat.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(line.text, chatWidth-6) + "\n\n")
		default:
			content.WriteString(formatNPCReply(m.npcName, line.text, chatWidth) + "\n\n")
		}
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatNPCReply(name, text string, width int) string {
	prefix := name + ": "
	wrapped := wordwrap.String(text, max(width-len(prefix), 10))
	return npcStyle.Render(prefix) + wrapped
}

func (m ChatUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.listenEvents(), waitForEvent(m.eventCh))
}

func (m ChatUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.writeChatContent()
		m.writeMetadata()

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

			switch strings.ToLower(input) {
			case "quit", "exit", "bye":
				m.lines = append(m.lines, chatLine{role: chat.ChatRoleAgent, text: "Farewell!"})
				m.writeChatContent()
				return m, m.quit()
			}

			m.err = nil
			m.loading = true
			m.progressTick = 0
			m.lines = append(m.lines, chatLine{role: chat.ChatRoleUser, text: input})
			m.writeChatContent()
			return m, tea.Batch(m.sendTalk(input), progressTick())
		}

	case talkResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.lines = append(m.lines, chatLine{role: chat.ChatRoleAgent, text: msg.response})
		}
		m.writeChatContent()
		return m, nil

	case sseEventMsg:
		m.events = append(m.events, describeEvent(SSEEvent(msg)))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		m.writeMetadata()
		return m, waitForEvent(m.eventCh)

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m ChatUI) sendTalk(input string) tea.Cmd {
	req := chat.TalkRequest{
		NPCID:            m.npcID,
		PlayerInput:      input,
		DialogueType:     m.dialogue.DialogueType,
		DialogueStage:    m.dialogue.DialogueStage,
		Mood:             m.dialogue.Mood,
		PlayerReputation: m.dialogue.PlayerReputation,
		QuestState:       m.dialogue.QuestState,
	}
	return func() tea.Msg {
		response, err := m.api.Talk(req)
		return talkResponseMsg{response: response, err: err}
	}
}

// listenEvents streams persona events into eventCh. A server without an
// event stream simply yields none.
func (m ChatUI) listenEvents() tea.Cmd {
	return func() tea.Msg {
		_ = m.api.listenToSSE(m.eventsCtx, m.npcID, m.eventCh)
		return nil
	}
}

func waitForEvent(ch <-chan SSEEvent) tea.Cmd {
	return func() tea.Msg {
		return sseEventMsg(<-ch)
	}
}

func describeEvent(e SSEEvent) string {
	stamp := time.Now().Format("15:04:05")
	if ts, ok := e.Data["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			stamp = t.Local().Format("15:04:05")
		}
	}
	return fmt.Sprintf("%s %s", stamp, e.Type)
}

func (m ChatUI) quit() tea.Cmd {
	m.stopEvents()
	return tea.Quit
}

func (m ChatUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m, m.quit()
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}
	return m, nil
}

func (m ChatUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("End Conversation?"))
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("Leave your conversation with %s?", m.npcName))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to leave, N to keep talking"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ChatUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

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

// renderProgressBar creates an animated progress bar for loading states
func (m ChatUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
