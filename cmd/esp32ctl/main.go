// Command esp32ctl is the host companion TUI: a bubbletea console for
// sending commands to an esp32-sub000 device over TCP and browsing the
// responses, grounded on the Model/Update/View shape and lipgloss
// styling of the teacher's internal/cli/ui chat screen.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eriksl/esp32-sub000/internal/discovery"
	"github.com/eriksl/esp32-sub000/internal/hostclient"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true)

	responseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type model struct {
	client   *hostclient.Client
	addr     string
	input    textarea.Model
	history  viewport.Model
	lines    []string
	lastResp string
	width    int
	height   int
	err      error
}

func initialModel(client *hostclient.Client, addr string) model {
	ta := textarea.New()
	ta.Placeholder = "command..."
	ta.Focus()
	ta.ShowLineNumbers = false
	ta.SetHeight(1)

	vp := viewport.New(80, 20)

	return model{client: client, addr: addr, input: ta, history: vp}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

type responseMsg struct {
	text string
	err  error
}

func (m model) sendCommand(line string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.client.Command(line)
		return responseMsg{text: text, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.history.Width = msg.Width
		m.history.Height = msg.Height - 4
		m.input.SetWidth(msg.Width)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.client != nil {
				m.client.Close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				break
			}
			if line == "!copy" {
				_ = clipboard.WriteAll(m.lastResp)
				m.lines = append(m.lines, promptStyle.Render("(copied last response to clipboard)"))
				m.history.SetContent(strings.Join(m.lines, "\n"))
				break
			}
			m.lines = append(m.lines, promptStyle.Render(m.addr+"> ")+line)
			m.history.SetContent(strings.Join(m.lines, "\n"))
			m.history.GotoBottom()
			cmds = append(cmds, m.sendCommand(line))
		}

	case responseMsg:
		if msg.err != nil {
			m.err = msg.err
			m.lines = append(m.lines, errorStyle.Render("error: "+msg.err.Error()))
		} else {
			m.lastResp = msg.text
			m.lines = append(m.lines, responseStyle.Render(msg.text))
		}
		m.history.SetContent(strings.Join(m.lines, "\n"))
		m.history.GotoBottom()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.history, cmd = m.history.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	header := headerStyle.Render(fmt.Sprintf(" esp32ctl — %s ", m.addr))
	return fmt.Sprintf("%s\n%s\n%s\n", header, m.history.View(), m.input.View())
}

func main() {
	addr := flag.String("addr", "", "device TCP CLI address, host:24")
	scan := flag.Bool("scan", false, "scan the local subnet for devices and exit")
	flag.Parse()

	if *scan {
		results, err := discovery.Scan(discovery.NewConfig())
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan failed:", err)
			os.Exit(1)
		}
		for _, r := range results {
			fmt.Printf("%s\t%dms\t%s\n", r.Address, r.LatencyMs, r.Info)
		}
		return
	}

	if *addr == "" {
		fmt.Fprintln(os.Stderr, "usage: esp32ctl -addr host:24")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := hostclient.Dial(ctx, *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client, *addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}
