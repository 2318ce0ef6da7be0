package cli

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
	"github.com/aititan/deepseek-agent/core"
)

// styles for interactive mode; rendered plain when the writer is not a
// terminal.
type styles struct {
	prompt lipgloss.Style
	answer lipgloss.Style
	err    lipgloss.Style
	hint   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		prompt: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		answer: r.NewStyle().Foreground(lipgloss.Color("15")),
		err:    r.NewStyle().Foreground(lipgloss.Color("9")),
		hint:   r.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}

// interactive reads one prompt per line from in and prints each answer
// to out until EOF, "exit", or "quit".  Failed requests are reported
// and the loop continues.
func interactive(ctx context.Context, agent *core.Agent, tmpl client.Request, in io.Reader, out, errOut io.Writer) (err error) {
	st := newStyles(out)
	model := tmpl.Model
	if model == "" {
		model = agent.Models().Default
	}
	Fpf(out, "%s\n", st.hint.Render(Spf("model %s; type exit or quit to leave", model)))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		Fpf(out, "%s ", st.prompt.Render("deepseek>"))
		if !scanner.Scan() {
			Fpf(out, "\n")
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return
		}
		req := tmpl
		req.Prompt = line
		answer, aerr := agent.Ask(ctx, req)
		if aerr != nil {
			Fpf(errOut, "%s\n", st.err.Render("error: "+aerr.Error()))
			continue
		}
		Fpf(out, "%s\n\n", st.answer.Render(answer))
	}
	return scanner.Err()
}
