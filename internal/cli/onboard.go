package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sealbot/sealbot/internal/config"
)

// --- existing-config chooser ---

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type chooserModel struct {
	choices []string
	cursor  int
	chosen  bool
	choice  onboardChoice
}

func (m chooserModel) Init() tea.Cmd { return nil }

func (m chooserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.choice = choiceSkip
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = onboardChoice(m.cursor)
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m chooserModel) View() string {
	if m.chosen {
		return ""
	}
	s := "\n"
	s += fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(config.ConfigPath()))
	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = MarkStyle.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}
	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n"
	return s
}

// --- credential wizard ---

type wizardField struct {
	label       string
	placeholder string
	secret      bool
	value       *string
}

type wizardModel struct {
	fields []wizardField
	inputs []textinput.Model
	index  int
	done   bool
	abort  bool
}

func newWizard(fields []wizardField) wizardModel {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		in := textinput.New()
		in.Placeholder = f.placeholder
		in.CharLimit = 512
		in.Width = 56
		if f.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		if *f.value != "" {
			in.SetValue(*f.value)
		}
		inputs[i] = in
	}
	inputs[0].Focus()
	return wizardModel{fields: fields, inputs: inputs}
}

func (m wizardModel) Init() tea.Cmd { return textinput.Blink }

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.abort = true
			return m, tea.Quit
		case tea.KeyEnter:
			*m.fields[m.index].value = m.inputs[m.index].Value()
			if m.index == len(m.inputs)-1 {
				m.done = true
				return m, tea.Quit
			}
			m.inputs[m.index].Blur()
			m.index++
			m.inputs[m.index].Focus()
			return m, textinput.Blink
		}
	}
	var cmd tea.Cmd
	m.inputs[m.index], cmd = m.inputs[m.index].Update(msg)
	return m, cmd
}

func (m wizardModel) View() string {
	if m.done || m.abort {
		return ""
	}
	s := "\n"
	for i, f := range m.fields {
		mark := "  "
		if i < m.index {
			mark = OkStyle.Render("✓ ")
		} else if i == m.index {
			mark = MarkStyle.Render("❯ ")
		}
		s += "  " + mark + BoldStyle.Render(f.label) + "\n"
		if i == m.index {
			s += "    " + m.inputs[i].View() + "\n"
		}
	}
	s += "\n" + DimStyle.Render("  enter next · esc cancel") + "\n"
	return s
}

// RunOnboard runs the onboard wizard: it writes the config file and walks
// the operator through the account credentials.
func RunOnboard() {
	cfgPath := config.ConfigPath()
	var cfg *config.Config

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s sealbot Onboard", Logo)))

	if _, err := os.Stat(cfgPath); err == nil {
		m := chooserModel{
			choices: []string{
				"Upgrade — add new fields, keep existing values",
				"Overwrite — replace with fresh defaults",
				"Skip — do not modify config",
			},
		}
		p := tea.NewProgram(m)
		final, err := p.Run()
		if err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
		fm := final.(chooserModel)

		fmt.Println()
		switch fm.choice {
		case choiceUpgrade:
			upgraded, err := config.Upgrade()
			if err != nil {
				fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
				os.Exit(1)
			}
			cfg = upgraded
			fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
		case choiceOverwrite:
			cfg = config.DefaultConfig()
		default:
			fmt.Println("  " + DimStyle.Render("Config unchanged"))
			return
		}
	} else {
		cfg = config.DefaultConfig()
	}

	fields := []wizardField{
		{label: "Playerok token", placeholder: "token cookie value", secret: true, value: &cfg.Playerok.Token},
		{label: "Proxy (optional)", placeholder: "ip:port · user:pass@ip:port · socks5://…", value: &cfg.Playerok.Proxy},
		{label: "User agent (optional)", placeholder: "leave empty to rotate realistic agents", value: &cfg.Playerok.UserAgent},
		{label: "Discord bot token (optional)", placeholder: "for event notifications", secret: true, value: &cfg.Notifications.Discord.Token},
		{label: "Discord channel id (optional)", placeholder: "notification target channel", value: &cfg.Notifications.Discord.ChannelID},
	}
	p := tea.NewProgram(newWizard(fields))
	final, err := p.Run()
	if err != nil {
		fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
	if final.(wizardModel).abort {
		fmt.Println("  " + DimStyle.Render("Cancelled, config unchanged"))
		return
	}

	cfg.Notifications.Discord.Enabled = cfg.Notifications.Discord.Token != "" &&
		cfg.Notifications.Discord.ChannelID != ""

	if err := config.Save(cfg); err != nil {
		fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  " + OkStyle.Render("✓") + " Config written to " + DimStyle.Render(cfgPath))
	fmt.Println()
	fmt.Println(OkStyle.Render("  sealbot is ready!"))
	fmt.Println(DimStyle.Render("  Start listening with: sealbot run"))
	fmt.Println()
}
