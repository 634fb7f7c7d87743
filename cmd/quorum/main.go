// Command quorum verifies, stores and evaluates community documents.
//
// # Usage
//
//	quorum [-config quorum.yaml] verify -kind proposal -file proposal.json
//	quorum [-config quorum.yaml] submit -kind vote -file vote.json
//	quorum [-config quorum.yaml] import -car bundle.car
//	quorum [-config quorum.yaml] export -uri ipfs://... -out bundle.car
//	quorum [-config quorum.yaml] snapshot -coin 60
//	quorum [-config quorum.yaml] eval -kind number -sets voting.json -did alice.bit,bob.bit
//	quorum [-config quorum.yaml] resolve -did alice.bit
//	quorum functions
//
// A storage path is required for submit, import and export to have lasting effect.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nasdf/quorum"
	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/codec"
	"github.com/nasdf/quorum/config"
	"github.com/nasdf/quorum/document"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/snapshot"

	"github.com/fatih/color"
)

type command func(ctx context.Context, q *quorum.Quorum, args []string) error

var commands = map[string]command{
	"verify":    runVerify,
	"submit":    runSubmit,
	"import":    runImport,
	"export":    runExport,
	"snapshot":  runSnapshot,
	"eval":      runEval,
	"resolve":   runResolve,
	"functions": runFunctions,
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := quorum.Open(ctx, cfg, quorum.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = cmd(ctx, q, flag.Args()[1:])
	if cerr := q.Close(); cerr != nil {
		logger.Error("close storage", "err", cerr)
	}
	if err != nil {
		reject(err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: quorum [-config file] <verify|submit|import|export|snapshot|eval|resolve|functions> [flags]\n")
	flag.PrintDefaults()
}

func loadConfiguration(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

func reject(err error) {
	if kind := fault.KindOf(err); kind != nil {
		color.Red("✗ rejected: %s", kind)
		if path := fault.PathOf(err); path != "" {
			color.Red("  at %s", path)
		}
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func readDocument(kindName, path string) (document.Kind, map[string]any, error) {
	kind, err := document.ParseKind(kindName)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	raw, err := codec.UnmarshalDocument(data)
	if err != nil {
		return "", nil, fault.Wrap(fault.SchemaError, "", err)
	}
	return kind, raw, nil
}

func runVerify(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	kindName := fs.String("kind", "", "Document kind (community, proposal, option, vote)")
	file := fs.String("file", "", "Path to the JSON document")
	fs.Parse(args)

	kind, raw, err := readDocument(*kindName, *file)
	if err != nil {
		return err
	}
	accepted, err := q.Verify(ctx, kind, raw)
	if err != nil {
		return err
	}
	color.Green("✓ accepted %s %s", accepted.Kind, accepted.URI)
	return nil
}

func runSubmit(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	kindName := fs.String("kind", "", "Document kind (community, proposal, option, vote)")
	file := fs.String("file", "", "Path to the JSON document")
	fs.Parse(args)

	kind, raw, err := readDocument(*kindName, *file)
	if err != nil {
		return err
	}
	uri, err := q.Submit(ctx, kind, raw)
	if err != nil {
		return err
	}
	color.Green("✓ stored %s %s", kind, uri)
	return nil
}

func runImport(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	car := fs.String("car", "", "Path to the CAR file")
	fs.Parse(args)

	f, err := os.Open(*car)
	if err != nil {
		return err
	}
	defer f.Close()

	roots, err := q.Store().Import(ctx, f)
	if err != nil {
		return err
	}
	for _, root := range roots {
		color.Cyan("imported %s", root)
	}
	return nil
}

func runExport(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	uri := fs.String("uri", "", "Document URI")
	out := fs.String("out", "", "Path of the CAR file to write")
	fs.Parse(args)

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := q.Store().Export(ctx, *uri, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	color.Cyan("exported %s to %s", *uri, *out)
	return nil
}

func runSnapshot(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	coins := fs.String("coin", "60,309", "Comma separated coin types")
	fs.Parse(args)

	var coinTypes []chain.CoinType
	for _, s := range strings.Split(*coins, ",") {
		c, err := chain.ParseCoinType(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		coinTypes = append(coinTypes, c)
	}
	snapshots, err := q.Snapshots().Take(ctx, coinTypes)
	if err != nil {
		return err
	}
	data, err := snapshots.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runEval(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	kind := fs.String("kind", "boolean", "Set kind (boolean or number)")
	file := fs.String("sets", "", "Path to the JSON set")
	dids := fs.String("did", "", "Comma separated DIDs")
	pinned := fs.String("snapshot", "", "JSON snapshot map; defaults to the current heights")
	fs.Parse(args)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	node, err := sets.Unmarshal(data)
	if err != nil {
		return err
	}
	evaluator := q.Evaluator()

	var snapshots snapshot.Map
	if *pinned != "" {
		if err := snapshots.UnmarshalJSON([]byte(*pinned)); err != nil {
			return fault.Wrap(fault.SchemaError, "snapshot", err)
		}
	} else {
		required, err := evaluator.RequiredCoinTypes(node)
		if err != nil {
			return err
		}
		snapshots, err = q.Snapshots().Take(ctx, required.ToSlice())
		if err != nil {
			return err
		}
	}

	names := strings.Split(*dids, ",")
	switch *kind {
	case "boolean":
		results, err := evaluator.EvaluateBooleanEach(ctx, node, names, snapshots)
		if err != nil {
			return err
		}
		for _, name := range names {
			if results[name] {
				color.Green("✓ %s", name)
			} else {
				color.Red("✗ %s", name)
			}
		}
	case "number":
		results, err := evaluator.EvaluateNumberEach(ctx, node, names, snapshots)
		if err != nil {
			return err
		}
		for _, name := range names {
			color.Cyan("%s %v", name, results[name])
		}
	default:
		return errors.New("kind must be boolean or number")
	}
	return nil
}

func runResolve(ctx context.Context, q *quorum.Quorum, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	dids := fs.String("did", "", "Comma separated DIDs")
	fs.Parse(args)

	resolver := q.Resolver()
	snapshots, err := q.Snapshots().Take(ctx, resolver.RequiredCoinTypes())
	if err != nil {
		return err
	}
	for _, name := range strings.Split(*dids, ",") {
		addr, err := resolver.Resolve(ctx, strings.TrimSpace(name), snapshots)
		if err != nil {
			return err
		}
		color.Cyan("%s %s %s", name, addr.CoinType, addr.Address)
	}
	return nil
}

func runFunctions(ctx context.Context, q *quorum.Quorum, args []string) error {
	registry := q.Evaluator().Registry()
	fmt.Printf("boolean functions: %s\n", strings.Join(registry.BooleanNames(), ", "))
	fmt.Printf("number functions:  %s\n", strings.Join(registry.NumberNames(), ", "))
	fmt.Printf("did suffixes:      %s\n", strings.Join(q.Suffixes(), ", "))
	return nil
}
