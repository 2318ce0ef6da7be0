package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
	"github.com/aititan/deepseek-agent/core"
	"github.com/aititan/deepseek-agent/deepseek"
	"github.com/aititan/deepseek-agent/history"
	"github.com/aititan/deepseek-agent/mock"
	"github.com/aititan/deepseek-agent/server"
	"github.com/aititan/deepseek-agent/util"
)

// cmdAsk sends one prompt and prints the answer.  It is the default
// command, so `deepseek-agent why is the sky blue` works.
type cmdAsk struct {
	Prompt      []string `arg:"" optional:"" help:"Prompt text; read from stdin when omitted."`
	Temperature float32  `short:"t" default:"-1" help:"Sampling temperature, 0 to 2 (default from config)."`
	MaxTokens   int      `name:"max-tokens" help:"Maximum tokens to generate (default from config)."`
	Sysmsg      string   `short:"s" help:"System message to send before the prompt."`
	Edit        bool     `short:"e" help:"Write the prompt in DEEPSEEK_EDITOR."`
	Interactive bool     `short:"i" help:"Read prompts line by line until exit or quit."`
}

type cmdApp struct {
	Description []string `arg:"" optional:"" help:"Description of the app to generate."`
	Components  string   `short:"c" type:"existingfile" help:"JSON file holding the list of UI components."`
	Output      string   `short:"o" help:"Write App.js here instead of stdout."`
	Raw         bool     `help:"Print the unmodified model response."`
}

type cmdHistory struct {
	N     int  `short:"n" default:"10" help:"Number of entries to show; 0 shows all."`
	Full  bool `short:"f" help:"Show full prompts and responses."`
	Clear bool `help:"Delete all recorded entries."`
}

type cmdModels struct{}

type cmdTc struct{}

type cmdServe struct {
	Addr string `help:"Listen address (default from config)."`
}

type cmdVersion struct{}

type cmdConfig struct{}

type cliArgs struct {
	Ask     cmdAsk     `cmd:"" default:"withargs" help:"Send a prompt and print the response (default command)."`
	App     cmdApp     `cmd:"" help:"Generate a single-file React app from a description and components."`
	History cmdHistory `cmd:"" help:"List recorded prompts and responses, newest first."`
	Models  cmdModels  `cmd:"" help:"List known models."`
	Tc      cmdTc      `cmd:"" help:"Calculate the token count of stdin."`
	Serve   cmdServe   `cmd:"" help:"Serve the agent over HTTP."`
	Version cmdVersion `cmd:"" help:"Show version of deepseek-agent and its history db."`
	Config  cmdConfig  `cmd:"" help:"Show the effective configuration with the API key masked."`

	Verbose     bool   `short:"v" help:"Show debug information on stderr."`
	ConfigFile  string `name:"config" type:"path" help:"Config file (default $DEEPSEEK_CONFIG or ~/.config/deepseek-agent/config.yaml)."`
	Model       string `short:"m" help:"Model to use."`
	HistoryFile string `name:"history" type:"path" help:"History database; overrides the config."`
	Demo        bool   `help:"Answer locally without calling the API."`
}

// CliConfig contains the configuration for the cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "deepseek-agent",
		Description: "A command-line client for the DeepSeek chat-completion API.",
		Version:     core.CodeVersion(),
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// cmdInSlice returns true if cmd is in cmds. This function only looks
// at the first word in cmd.
func cmdInSlice(cmd string, cmds []string) bool {
	return util.StringInSlice(util.FirstWord(cmd), cmds)
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.  Request failures are reported on stderr with rc 1; err
// is reserved for failures of the cli itself.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
		},
	}

	var cli cliArgs
	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1, nil
	}

	if cli.Verbose {
		prev, had := os.LookupEnv("DEBUG")
		os.Setenv("DEBUG", "1")
		defer func() {
			if had {
				os.Setenv("DEBUG", prev)
			} else {
				os.Unsetenv("DEBUG")
			}
		}()
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)

	// fail reports a request error the way users expect to see it
	fail := func(ferr error) (int, error) {
		Fpf(config.Stderr, "%s: %v\n", config.Name, ferr)
		return 1, nil
	}

	if cmdInSlice(cmd, []string{"tc"}) {
		// tc needs neither config nor credentials
		buf, err := io.ReadAll(config.Stdin)
		Ck(err)
		tok, err := core.NewTokenizer()
		Ck(err)
		count, err := tok.Count(strings.TrimSpace(string(buf)))
		Ck(err)
		Pf("%d\n", count)
		return 0, nil
	}

	cfg, err := core.LoadConfig(cli.ConfigFile)
	if err != nil {
		return fail(err)
	}
	if cli.Model != "" {
		cfg.Model = cli.Model
	}
	if cli.HistoryFile != "" {
		cfg.History = cli.HistoryFile
	}
	if cli.Ask.Temperature >= 0 {
		cfg.Temperature = client.Float32(cli.Ask.Temperature)
	}
	if cli.Ask.MaxTokens > 0 {
		cfg.MaxTokens = client.Int(cli.Ask.MaxTokens)
	}
	err = cfg.Validate()
	if err != nil {
		return fail(err)
	}

	if cmdInSlice(cmd, []string{"config"}) {
		out, err := cfg.Redacted()
		Ck(err)
		Pf("%s", out)
		return 0, nil
	}

	// commands that read or write the history db
	var store *history.Store
	if cmdInSlice(cmd, []string{"ask", "app", "serve", "history", "version"}) && cfg.History != "" {
		var migrated bool
		var was, now string
		store, migrated, was, now, err = history.Open(cfg.History)
		if err != nil {
			return fail(err)
		}
		defer store.Close()
		if migrated {
			Fpf(config.Stderr, "migrated history db from version %s to %s\n", was, now)
		}
	}

	models := core.NewModels()
	err = models.SetDefault(cfg.Model)
	if err != nil {
		// unknown ids are passed through to the endpoint
		Debug("%v; passing model through", err)
		models.Default = cfg.Model
	}

	// commands that talk to the endpoint
	var completer client.Completer
	if cmdInSlice(cmd, []string{"ask", "app", "serve"}) {
		if cli.Demo {
			completer = mock.NewClient()
		} else {
			completer, err = deepseek.NewClient(cfg.ClientConfig())
			if err != nil {
				return fail(err)
			}
		}
	}

	tok, err := core.NewTokenizer()
	Ck(err)
	opts := []core.Option{core.WithTokenizer(tok), core.WithTimeout(time.Duration(cfg.Timeout))}
	if store != nil {
		opts = append(opts, core.WithHistory(store))
	}
	agent := core.NewAgent(completer, models, opts...)

	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch util.FirstWord(cmd) {
	case "ask":
		req := client.Request{
			Model:       cli.Model,
			Sysmsg:      cli.Ask.Sysmsg,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}
		if cli.Ask.Interactive {
			err = interactive(bg, agent, req, config.Stdin, config.Stdout, config.Stderr)
			Ck(err)
			return
		}
		prompt := strings.Join(cli.Ask.Prompt, " ")
		if cli.Ask.Edit {
			prompt, err = editPrompt(editorCommand(cfg.Editor), prompt)
			if err != nil {
				return fail(err)
			}
		} else if len(cli.Ask.Prompt) == 0 {
			// get text from stdin
			buf, err := io.ReadAll(config.Stdin)
			Ck(err)
			prompt = string(buf)
		}
		req.Prompt = prompt
		out, err := agent.Ask(bg, req)
		if err != nil {
			return fail(err)
		}
		Pl(out)
	case "app":
		var components []core.Component
		if cli.App.Components != "" {
			buf, err := os.ReadFile(cli.App.Components)
			Ck(err)
			err = json.Unmarshal(buf, &components)
			if err != nil {
				return fail(fmt.Errorf("invalid components file %s: %v", cli.App.Components, err))
			}
		}
		description := strings.Join(cli.App.Description, " ")
		res, err := agent.CreateApp(bg, description, components, client.Request{
			Model:       cli.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return fail(err)
		}
		out := res.Code
		if cli.App.Raw {
			out = res.Raw
		}
		if cli.App.Output != "" {
			err = os.WriteFile(cli.App.Output, []byte(out+"\n"), 0644)
			Ck(err)
			Fpf(config.Stderr, "wrote %s\n", cli.App.Output)
			return 0, nil
		}
		Pl(out)
	case "history":
		if store == nil {
			return fail(fmt.Errorf("history is disabled; set history in the config, DEEPSEEK_HISTORY, or --history"))
		}
		if cli.History.Clear {
			err = store.Clear()
			Ck(err)
			Fpf(config.Stderr, "cleared %s\n", store.Path())
			return
		}
		entries, err := store.List(cli.History.N)
		Ck(err)
		for _, e := range entries {
			showEntry(e, cli.History.Full)
		}
	case "models":
		for _, m := range models.ListModels() {
			Pl(m)
		}
	case "serve":
		addr := cfg.Server.Addr
		if cli.Serve.Addr != "" {
			addr = cli.Serve.Addr
		}
		srv := server.New(agent, server.Config{AccessLog: config.Stderr})
		Fpf(config.Stderr, "listening on %s\n", addr)
		err = srv.Listen(bg, addr)
		Ck(err)
	case "version":
		Pf("deepseek-agent version %s\n", core.CodeVersion())
		if store != nil {
			v, err := store.Version()
			Ck(err)
			Pf("history db version %s\n", v)
		}
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", ctx.Command())
		rc = 1
		return
	}

	return
}

// showEntry prints one history entry.
func showEntry(e *history.Entry, full bool) {
	stamp := e.Time.Local().Format("2006-01-02 15:04:05")
	if full {
		Pf("%s  %s  %s\n", stamp, e.Model, e.ID)
		Pf("> %s\n\n%s\n\n", e.Prompt, e.Response)
		return
	}
	Pf("%s  %-18s %s\n", stamp, e.Model, oneLine(e.Prompt, 60))
}

// oneLine flattens s onto a single line of at most n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
