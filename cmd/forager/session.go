package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/HexSleeves/forager/internal/agent"
	"github.com/HexSleeves/forager/internal/bus"
	"github.com/HexSleeves/forager/internal/config"
	ferrors "github.com/HexSleeves/forager/internal/errors"
	"github.com/HexSleeves/forager/internal/llm"
	"github.com/HexSleeves/forager/internal/output"
	"github.com/HexSleeves/forager/internal/state"
	"github.com/HexSleeves/forager/internal/tool"
	"github.com/HexSleeves/forager/internal/tool/webscrape"
)

// errReported is returned once an error has already been shown to the user.
var errReported = errors.New("error already reported")

// session holds what one CLI invocation builds: config, output, the shared
// HTTP client, the event bus and the optional history database.
type session struct {
	cfg     *config.Config
	env     config.Environment
	mode    output.Mode
	out     io.Writer
	errOut  io.Writer
	tty     bool
	printer *output.Printer
	json    *output.JSONWriter
	logger  *log.Logger
	http    *http.Client
	bus     *bus.MessageBus
	db      *state.DB
}

func writerOf(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriterOf(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadConfig reads the dotenv file and the config file named by the global
// flags.
func loadConfig(cmd *cli.Command) (*config.Config, config.Environment, error) {
	env, err := config.LoadEnvironment(cmd.String("env-file"))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}

// newSession builds the shared pieces. interactive selects the TUI mode when
// both ends are terminals.
func newSession(cmd *cli.Command, interactive bool) (*session, error) {
	out := writerOf(cmd)
	tty := isTerminal(out)
	mode := output.SelectMode(cmd.Bool("json"), cmd.Bool("quiet"), interactive, tty && term.IsTerminal(int(os.Stdin.Fd())))
	verbose := cmd.Bool("verbose")

	s := &session{
		mode:    mode,
		out:     out,
		errOut:  errWriterOf(cmd),
		tty:     tty,
		printer: output.NewPrinterWithWriter(mode, verbose, out),
		logger:  log.New(io.Discard, "", log.LstdFlags),
		http:    &http.Client{},
		bus:     bus.New(0),
	}
	if verbose {
		s.logger.SetOutput(s.errOut)
	}

	switch mode {
	case output.ModeJSON:
		s.json = output.NewJSONWriter(out)
		s.json.Attach(s.bus)
	case output.ModePlain:
		s.printer.Attach(s.bus)
	}

	cfg, env, err := loadConfig(cmd)
	if err != nil {
		s.report(err)
		return nil, errReported
	}
	s.cfg, s.env = cfg, env
	return s, nil
}

// openHistory starts recording queries unless history is turned off. A
// database that cannot be opened only costs the history.
func (s *session) openHistory(cmd *cli.Command) {
	if !s.cfg.History.Enabled || cmd.Bool("no-history") {
		return
	}
	db, err := state.OpenDB(s.cfg.History.Dir)
	if err != nil {
		s.printer.Warning("History disabled: %v", err)
		return
	}
	s.db = db
	s.logger.Printf("Recording history in %s", db.Path())
	state.NewRecorder(db, s.logger).Attach(s.bus)
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// registry returns the built-in tools.
func (s *session) registry() *tool.Registry {
	reg := tool.NewRegistry()
	reg.Register(s.scraper())
	return reg
}

func (s *session) scraper() *webscrape.Scraper {
	return webscrape.New(s.cfg.Scraper, s.http, s.logger)
}

// newAgent resolves the chat backend from the environment and builds an
// agent with the built-in tools.
func (s *session) newAgent() (*agent.Agent, error) {
	backend, err := config.Resolve(s.cfg, s.env)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewFromConfig(backend, s.http, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("Using %s backend (%s)", backend.Provider, backend.Model)
	return agent.New(client,
		agent.WithRegistry(s.registry()),
		agent.WithBus(s.bus),
		agent.WithLogger(s.logger),
	), nil
}

// report shows err in the current output mode.
func (s *session) report(err error) {
	if s.json != nil {
		s.json.WriteError(err.Error(), string(ferrors.KindOf(err)))
		return
	}
	if s.mode == output.ModeTUI {
		// Only reached before or after the TUI owns the screen.
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	s.printer.Error("%v", err)

	var nf *ferrors.ToolNotFoundError
	if errors.As(err, &nf) && s.cfg != nil {
		if names := suggestTools(nf.Name, s.registry().List()); len(names) > 0 {
			s.printer.Info("Did you mean: %s?", strings.Join(names, ", "))
		}
	}
}

// suggestTools returns the names in known that fuzzily match name, closest
// first.
func suggestTools(name string, known []string) []string {
	ranks := fuzzy.RankFindFold(name, known)
	if len(ranks) == 0 {
		// Also try the other way round so "web_scraper_v2" still finds "web_scraper".
		for _, k := range known {
			if fuzzy.MatchFold(k, name) {
				ranks = append(ranks, fuzzy.Rank{Source: name, Target: k, Distance: len(name) - len(k)})
			}
		}
	}
	sort.Sort(ranks)
	names := make([]string, 0, len(ranks))
	for _, r := range ranks {
		names = append(names, r.Target)
	}
	return names
}

func (s *session) fail(err error) error {
	s.report(err)
	return errReported
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
