// Package main provides promptctl, a command-line view of the prompt catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/travelprompt/internal/catalog"
	"github.com/thebtf/travelprompt/internal/config"
	dbgorm "github.com/thebtf/travelprompt/internal/db/gorm"
	"github.com/thebtf/travelprompt/internal/destinations"
	"github.com/thebtf/travelprompt/internal/hydrate"
	"github.com/thebtf/travelprompt/internal/insights"
	"github.com/thebtf/travelprompt/internal/search"
	"github.com/thebtf/travelprompt/internal/usage"
)

const usageText = `usage: promptctl <command> [flags]

commands:
  list      [-q query] [-category name]   list prompts
  show      <id>                          print a template and its variables
  render    <id> [-set key=value ...]     print the prompt with values filled in
  open      <id> -dest name [-set ...]    print the destination link
  validate                                check templates against their variables
  insights  [-db path] [-driver name]     print usage counts from the event log
`

var errUsage = errors.New("invalid usage")

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usageText)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("promptctl failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return runList(cat, rest, out)
	case "show":
		return runShow(cat, rest, out)
	case "render":
		return runRender(cat, rest, out)
	case "open":
		return runOpen(cat, rest, out)
	case "validate":
		return runValidate(cat, out)
	case "insights":
		return runInsights(rest, out)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// valuesFlag collects repeated -set key=value flags.
type valuesFlag map[string]string

func (v valuesFlag) String() string {
	pairs := make([]string, 0, len(v))
	for k, val := range v {
		pairs = append(pairs, k+"="+val)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v valuesFlag) Set(s string) error {
	key, val, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[strings.TrimSpace(key)] = val
	return nil
}

// parseWithID parses flags that may appear before or after the positional id.
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}
	if id == "" {
		return "", fmt.Errorf("%s: missing prompt id: %w", fs.Name(), errUsage)
	}
	return id, nil
}

func runList(cat *catalog.Catalog, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	query := fs.String("q", "", "search text")
	category := fs.String("category", "", "category name or all")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	c, ok := search.ParseCategory(*category)
	if !ok {
		return fmt.Errorf("unknown category %q", *category)
	}

	result := search.NewManager(cat).Search(search.Params{Query: *query, Category: c})
	for _, p := range result.Prompts {
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Category, p.Title); err != nil {
			return err
		}
	}
	return nil
}

func runShow(cat *catalog.Catalog, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	p, err := cat.ByID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}

	fmt.Fprintf(out, "%s (%s)\n%s\n\n%s\n", p.Title, p.Category, p.Summary, p.PromptTemplate)
	if p.HasVariables() {
		fmt.Fprintln(out, "\nvariables:")
		for _, v := range p.Variables {
			fmt.Fprintf(out, "  %s\t%s\n", v.Key, v.Label)
		}
	}
	return nil
}

func runRender(cat *catalog.Catalog, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	values := valuesFlag{}
	fs.Var(values, "set", "key=value (repeatable)")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	p, err := cat.ByID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}

	fmt.Fprintln(out, hydrate.Hydrate(p.PromptTemplate, values, hydrate.ModeBrackets))
	return nil
}

func runOpen(cat *catalog.Catalog, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	values := valuesFlag{}
	fs.Var(values, "set", "key=value (repeatable)")
	dest := fs.String("dest", "ChatGPT", "destination name")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}
	p, err := cat.ByID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	d, err := destinations.Lookup(*dest)
	if err != nil {
		return fmt.Errorf("%s: %w", *dest, err)
	}

	fmt.Fprintln(out, d.BuildURL(hydrate.Hydrate(p.PromptTemplate, values, hydrate.ModeBrackets)))
	return nil
}

func runValidate(cat *catalog.Catalog, out io.Writer) error {
	issues := cat.Validate()
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d catalog issues", len(issues))
	}
	fmt.Fprintf(out, "%d prompts ok\n", cat.Len())
	return nil
}

func runInsights(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("db", "", "event database path")
	driver := fs.String("driver", "", "sqlite3 (cgo) or sqlite (pure Go)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *path == "" {
		*path = config.Get().DBPath
	}
	if *driver == "" {
		*driver = config.Get().DBDriver
	}
	if _, err := os.Stat(*path); err != nil {
		return fmt.Errorf("event database: %w", err)
	}

	store, err := dbgorm.NewStore(dbgorm.Config{Path: *path, Driver: *driver, MaxConns: 1, LogLevel: logger.Silent})
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := usage.NewRecorder(dbgorm.NewKVStore(store)).Events(context.Background())
	if err != nil {
		return err
	}
	report := insights.Build(events).Top()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "events\t%d\n", report.TotalEvents)
	for _, section := range []struct {
		name   string
		counts []insights.Count
	}{
		{"viewed", report.Views},
		{"copied", report.Copies},
		{"searched", report.Searches},
	} {
		for _, c := range section.counts {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", section.name, c.Key, c.Count)
		}
	}
	return tw.Flush()
}
