// Command iwainspect inspects, dumps and exports the contents of Keynote,
// Pages and Numbers document packages.
//
// Usage:
//
//	iwainspect [-config file] [-kind kind] [-log-level level] <command> [flags] <package> [args]
//
// Commands:
//
//	info      print package identity and encryption state
//	list      list decodable components
//	dump      write the decoded bytes of one component
//	records   print the records of components
//	export    write every component to a directory
//	probe     exit 0 if the file looks like a package
//
// Encrypted packages are opened with a password from the configured
// credential store, falling back to a terminal prompt.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/logicossoftware/go-iwa"
	"github.com/logicossoftware/go-iwa/credential"
	"github.com/logicossoftware/go-iwa/internal/config"
	"github.com/logicossoftware/go-iwa/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// Function variables for testing injection.
var (
	newPrompter = func(stderr io.Writer) credential.Prompter {
		return &credential.TerminalPrompter{In: os.Stdin, Out: stderr}
	}
	newSecretServiceStore = func() (credential.Store, error) { return credential.NewSecretServiceStore() }
)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	kind     iwa.Kind
	store    credential.Store
	prompter credential.Prompter
}

type command struct {
	name  string
	usage string
	run   func(a *app, args []string) error
}

var commands = []command{
	{"info", "info [-json] <package>", runInfo},
	{"list", "list <package>", runList},
	{"dump", "dump [-o file] <package> <component>", runDump},
	{"records", "records <package> [component...]", runRecords},
	{"export", "export [-out dir] [-compression c] [-records] <package>", runExport},
	{"probe", "probe <package>", runProbe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("iwainspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("IWA_CONFIG"), "configuration file (TOML, YAML or JSON)")
	kindFlag := fs.String("kind", "", "package kind (keynote, pages, numbers); default from extension")
	logLevel := fs.String("log-level", "", "override the configured log level")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "iwainspect: %v\n", err)
		return exitError
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "iwainspect: %v\n", err)
			return exitUsage
		}
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(stderr, cfg.LoggingConfig()),
		stdout: stdout,
		stderr: stderr,
	}
	if *kindFlag != "" {
		if a.kind, err = iwa.ParseKind(*kindFlag); err != nil {
			fmt.Fprintf(stderr, "iwainspect: %v: %q\n", err, *kindFlag)
			return exitUsage
		}
	}

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(a, fs.Args()[1:]); err != nil {
			var ue usageError
			if errors.As(err, &ue) {
				fmt.Fprintf(stderr, "usage: iwainspect %s\n", c.usage)
				return exitUsage
			}
			if errors.Is(err, errProbeFailed) {
				return exitError
			}
			fmt.Fprintf(stderr, "iwainspect %s: %v\n", c.name, err)
			a.logger.Debug("command failed", "command", c.name, "class", iwa.Classify(err).String())
			return exitError
		}
		return exitOK
	}
	fmt.Fprintf(stderr, "iwainspect: unknown command %q\n", name)
	usage(fs, stderr)
	return exitUsage
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: iwainspect [flags] <command> [args]")
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

type usageError struct{}

func (usageError) Error() string { return "usage" }

var errProbeFailed = errors.New("not a document package")

// flagSet returns a sub-command flag set that reports errors on stderr.
func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) openOptions() []iwa.Option {
	opts := []iwa.Option{iwa.WithLimits(a.cfg.IWALimits()), iwa.WithLogger(a.logger)}
	if a.kind != "" {
		opts = append(opts, iwa.WithKind(a.kind))
	}
	return opts
}

func (a *app) credentialStore() credential.Store {
	if a.store != nil {
		return a.store
	}
	switch a.cfg.Credentials.Store {
	case config.StoreMemory:
		a.store = credential.NewMemoryStore()
	case config.StoreSecretService:
		s, err := newSecretServiceStore()
		if err != nil {
			a.logger.Warn("credential store unavailable", "error", err)
			return nil
		}
		a.store = s
	}
	return a.store
}

// open opens path, asking for a password when the package is encrypted.
func (a *app) open(path string) (*iwa.Bundle, error) {
	opts := a.openOptions()
	b, err := iwa.Open(path, nil, opts...)
	if !errors.Is(err, iwa.ErrNeedsPassword) {
		return b, err
	}

	v, hint, err := iwa.PasswordVerifierFor(path, opts...)
	if err != nil {
		return nil, err
	}
	props, err := iwa.PropertiesFor(path, opts...)
	if err != nil {
		return nil, err
	}
	if a.prompter == nil {
		a.prompter = newPrompter(a.stderr)
	}
	r := &credential.Retriever{
		Store:       a.credentialStore(),
		Prompter:    a.prompter,
		MaxAttempts: a.cfg.Credentials.MaxAttempts,
		Logger:      a.logger,
	}
	desc := credential.Descriptor{
		Label:       filepath.Base(path),
		Description: "Document password",
		Service:     a.cfg.Credentials.Service,
		Generic:     []byte(strings.ToUpper(props.DocumentID.String())),
	}

	// The validator keeps the key of the accepted password so it is
	// derived once.
	var key *iwa.ContentKey
	validate := func(pw string) bool {
		k, err := v.CreateKey(pw)
		if err != nil {
			return false
		}
		key.Wipe()
		key = k
		return true
	}
	defer func() { key.Wipe() }()
	if _, err := r.Retrieve(desc, hint, validate); err != nil {
		return nil, fmt.Errorf("%w: %v", iwa.ErrNeedsPassword, err)
	}
	return iwa.Open(path, key, opts...)
}
