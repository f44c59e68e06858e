package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"earthworm-cli/internal/app"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sendDoneMsg struct {
	reply app.Message
	ok    bool
}

type recTickMsg struct{}

type MainModel struct {
	app   *app.Application
	theme Theme

	width  int
	height int
	ready  bool

	input  textarea.Model
	chatVP viewport.Model
	spin   spinner.Model

	session app.Session
	sending bool
	status  string

	pendingImage string

	showPicker bool
	picker     []app.Session
	pickerSel  int
}

func New(application *app.Application) *MainModel {
	ta := textarea.New()
	ta.Placeholder = "Message the assistant. /image <path> attaches a photo."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &MainModel{
		app:     application,
		theme:   NewTheme(),
		input:   ta,
		spin:    sp,
		session: application.Sessions.Current(),
	}
}

func (m *MainModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatH := max(3, m.height-6)
		if !m.ready {
			m.chatVP = viewport.New(m.width, chatH)
			m.ready = true
		} else {
			m.chatVP.Width = m.width
			m.chatVP.Height = chatH
		}
		m.input.SetWidth(max(10, m.width-6))
		m.refreshChat()
		return m, nil

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case recTickMsg:
		if m.app.Recorder.State() != app.RecRecording {
			return m, nil
		}
		return m, recTick()

	case sendDoneMsg:
		m.sending = false
		m.session = m.app.Sessions.Current()
		if msg.ok {
			m.status = ""
		}
		m.refreshChat()
		m.chatVP.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *MainModel) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showPicker {
		return m.onPickerKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "ctrl+n":
		m.session = m.app.Sessions.NewSession()
		m.pendingImage = ""
		m.status = ""
		m.refreshChat()
		return m, nil

	case "ctrl+l":
		m.picker = m.app.Sessions.Sessions()
		m.pickerSel = 0
		m.showPicker = true
		return m, nil

	case "ctrl+r":
		return m, m.toggleRecording()

	case "up":
		m.chatVP.LineUp(1)
		return m, nil
	case "down":
		m.chatVP.LineDown(1)
		return m, nil

	case "enter":
		return m, m.onEnter()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *MainModel) onPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+l":
		m.showPicker = false
	case "up":
		if m.pickerSel > 0 {
			m.pickerSel--
		}
	case "down":
		if m.pickerSel < len(m.picker)-1 {
			m.pickerSel++
		}
	case "d":
		if m.pickerSel < len(m.picker) {
			if err := m.app.Sessions.Delete(m.picker[m.pickerSel].ID); err == nil {
				m.picker = m.app.Sessions.Sessions()
				if m.pickerSel >= len(m.picker) && m.pickerSel > 0 {
					m.pickerSel--
				}
				m.session = m.app.Sessions.Current()
				m.refreshChat()
			}
		}
	case "enter":
		if m.pickerSel < len(m.picker) {
			if sess, err := m.app.Sessions.Select(m.picker[m.pickerSel].ID); err == nil {
				m.session = sess
			}
		}
		m.showPicker = false
		m.refreshChat()
		m.chatVP.GotoBottom()
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *MainModel) toggleRecording() tea.Cmd {
	rec := m.app.Recorder
	if rec.State() == app.RecRecording {
		rec.Stop()
		if err := rec.Err(); err != nil {
			m.status = err.Error()
			return nil
		}
		m.status = "voice clip attached to next message"
		return nil
	}
	if err := rec.Start(context.Background()); err != nil {
		m.status = err.Error()
		return nil
	}
	m.status = ""
	return recTick()
}

func (m *MainModel) onEnter() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())

	if path, ok := strings.CutPrefix(text, "/image "); ok {
		encoded, err := app.EncodeMediaFile(strings.TrimSpace(path))
		if err != nil {
			// Only the attach action fails; the compose flow continues.
			m.status = err.Error()
			return nil
		}
		m.pendingImage = encoded
		m.status = "image attached to next message"
		m.input.Reset()
		return nil
	}
	if text == "/discard" {
		m.app.Recorder.Discard()
		m.pendingImage = ""
		m.status = "attachments discarded"
		m.input.Reset()
		return nil
	}

	if m.sending {
		// One send in flight at a time; drop the attempt, keep the draft.
		return nil
	}

	audio, _ := m.app.Recorder.TakeArtifact()
	image := m.pendingImage
	if text == "" && image == "" && audio == "" {
		return nil
	}

	m.pendingImage = ""
	m.input.Reset()
	m.sending = true
	m.status = ""

	// Mirror the user turn locally so it shows while the reply is pending.
	m.session.Messages = append(m.session.Messages, app.Message{
		Role:      app.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		ImageURL:  image,
		AudioURL:  audio,
	})
	m.refreshChat()
	m.chatVP.GotoBottom()

	sessions := m.app.Sessions
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		reply, ok := sessions.Send(context.Background(), text, image, audio)
		return sendDoneMsg{reply: reply, ok: ok}
	})
}

func recTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return recTickMsg{} })
}

func (m *MainModel) refreshChat() {
	if !m.ready {
		return
	}
	m.chatVP.SetContent(m.renderMessages(m.chatVP.Width))
}

func (m *MainModel) renderMessages(width int) string {
	if len(m.session.Messages) == 0 {
		return m.theme.TextMuted.Render("Start the conversation. Enter sends, ctrl+r records, ctrl+n starts over.")
	}
	body := lipgloss.NewStyle().Width(max(10, width-2))
	var b strings.Builder
	for _, msg := range m.session.Messages {
		label := m.theme.RoleAI.Render("Assistant")
		if msg.Role == app.RoleUser {
			label = m.theme.RoleYou.Render("You")
		}
		b.WriteString(label)
		b.WriteString(m.theme.TextMuted.Render("  " + msg.Timestamp.Format("15:04")))
		b.WriteString("\n")
		content := msg.Content
		var markers []string
		if msg.ImageURL != "" {
			markers = append(markers, "[photo]")
		}
		if msg.AudioURL != "" {
			markers = append(markers, "[voice]")
		}
		if len(markers) > 0 {
			if content != "" {
				content += " "
			}
			content += m.theme.TextMuted.Render(strings.Join(markers, " "))
		}
		b.WriteString(body.Render(content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *MainModel) View() string {
	if !m.ready {
		return "loading..."
	}

	title := m.session.Title
	bar := m.theme.TopBar.Render(
		m.theme.TopBarTitle.Render("earthworm") + "  " + title + "  [" + string(m.app.Sessions.Language) + "]",
	)
	if m.app.Recorder.State() == app.RecRecording {
		bar += "  " + m.theme.Recording.Render(fmt.Sprintf("● REC %s", formatElapsed(m.app.Recorder.Elapsed())))
	}

	var middle string
	if m.showPicker {
		middle = m.renderPicker()
	} else {
		middle = m.chatVP.View()
	}

	inputLine := m.theme.InputBox.Width(max(12, m.width-2)).Render(m.input.View())
	if m.sending {
		inputLine = m.theme.InputBox.Width(max(12, m.width-2)).Render(m.spin.View() + " waiting for the assistant...")
	}

	footer := m.footerText()
	return bar + "\n" + middle + "\n" + inputLine + "\n" + m.theme.Footer.Render(footer)
}

func (m *MainModel) footerText() string {
	if m.showPicker {
		return "↑/↓ choose · enter open · d delete · esc close"
	}
	parts := []string{"enter send", "ctrl+r record", "ctrl+n new", "ctrl+l sessions", "ctrl+c quit"}
	if m.status != "" {
		return m.theme.Error.Render(m.status)
	}
	if m.pendingImage != "" {
		parts = append([]string{"[photo pending]"}, parts...)
	}
	if _, ok := m.app.Recorder.Artifact(); ok {
		parts = append([]string{"[voice pending]"}, parts...)
	}
	return strings.Join(parts, " · ")
}

func (m *MainModel) renderPicker() string {
	if len(m.picker) == 0 {
		return m.theme.TextMuted.Render("No saved sessions yet.")
	}
	var b strings.Builder
	b.WriteString(m.theme.PickerTitle.Render("Sessions"))
	b.WriteString("\n")
	for i, sess := range m.picker {
		line := fmt.Sprintf("%s  (%d messages, %s)",
			sess.Title, len(sess.Messages), sess.UpdatedAt.Format("Jan 2 15:04"))
		if i == m.pickerSel {
			b.WriteString(m.theme.PickerSel.Render("> " + line))
		} else {
			b.WriteString(m.theme.PickerItem.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
