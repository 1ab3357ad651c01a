package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in form inputs.
const maxInputLen = 200

// fieldSpec describes one text input of a form.
type fieldSpec struct {
	label       string
	placeholder string
	secret      bool
}

// fieldSet is an ordered group of text inputs with a single focused field.
type fieldSet struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newFieldSet(specs ...fieldSpec) fieldSet {
	fs := fieldSet{
		labels: make([]string, len(specs)),
		inputs: make([]textinput.Model, len(specs)),
	}
	for i, s := range specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = s.placeholder
		ti.CharLimit = maxInputLen
		ti.PlaceholderStyle = inputPlaceholderStyle
		if s.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		fs.labels[i] = s.label
		fs.inputs[i] = ti
	}
	if len(fs.inputs) > 0 {
		fs.inputs[0].Focus()
	}
	return fs
}

// value returns the trimmed value of field i. Secrets are returned as typed.
func (f fieldSet) value(i int) string {
	if f.inputs[i].EchoMode == textinput.EchoPassword {
		return f.inputs[i].Value()
	}
	return strings.TrimSpace(f.inputs[i].Value())
}

func (f *fieldSet) set(i int, v string) {
	f.inputs[i].SetValue(v)
}

func (f fieldSet) last() bool {
	return f.focus == len(f.inputs)-1
}

func (f *fieldSet) move(delta int) tea.Cmd {
	n := len(f.inputs)
	if n == 0 {
		return nil
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + n) % n
	return f.inputs[f.focus].Focus()
}

func (f *fieldSet) focusOn(i int) tea.Cmd {
	return f.move(i - f.focus)
}

// update routes msg to the focused input.
func (f *fieldSet) update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// view renders one "label: value" line per field, with per-field errors
// looked up by lowercased label.
func (f fieldSet) view(errs map[string]string) string {
	var b strings.Builder
	for i, in := range f.inputs {
		cursor := " "
		style := metaStyle
		if i == f.focus {
			cursor = inputPromptStyle.Render(">")
			style = selectedStyle
		}
		b.WriteString(cursor + " " + style.Render(padRight(f.labels[i], 12)) + " " + in.View() + "\n")
		if msg := errs[strings.ToLower(f.labels[i])]; msg != "" {
			b.WriteString("  " + strings.Repeat(" ", 13) + errorStyle.Render(msg) + "\n")
		}
	}
	return b.String()
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}
