package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/nlstn/go-csdl"
	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/docstore"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// app carries the configuration shared by all commands.
type app struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger
	store      *docstore.Store
}

// NewRootCommand creates the csdl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "csdl",
		Short: "Read, validate and convert OData CSDL documents",
		Long: color.CyanString(`csdl - OData CSDL tooling

Converts between the XML and JSON representations of OData metadata documents,
validates them, and keeps referenced documents in a local document store.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./csdl.yaml)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))
	rootCmd.AddCommand(newStoreCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	return rootCmd
}

// Execute runs the root command and prints a failure in red.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := Load(a.configPath)
	if err != nil {
		return err
	}
	level, _ := parseLevel(cfg.Log.Level)
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// openStore opens the configured document store once per command.
func (a *app) openStore() (*docstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := docstore.Open(a.cfg.Store.Dialect, a.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	s.SetLogger(a.logger)
	a.store = s
	return s, nil
}

// reader returns a Reader that resolves references of the document at path through the
// store, when enabled, and then the file system.
func (a *app) reader(path string) (*csdl.Reader, error) {
	r := csdl.NewReader()
	r.SetLogger(a.logger)

	dir := a.cfg.References.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	loaders := []csdl.ReferenceLoader{}
	if a.cfg.References.UseStore {
		s, err := a.openStore()
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, s)
	}
	loaders = append(loaders, csdl.FSLoader(os.DirFS(dir)))
	r.SetReferenceLoader(chainLoaders(loaders...))
	return r, nil
}

// chainLoaders tries each loader in turn until one does not skip the reference.
func chainLoaders(loaders ...csdl.ReferenceLoader) csdl.ReferenceLoader {
	return csdl.ReferenceLoaderFunc(func(ctx context.Context, uri string) ([]byte, error) {
		for _, l := range loaders {
			data, err := l.LoadReference(ctx, uri)
			if errors.Is(err, csdl.ErrSkipReference) {
				continue
			}
			return data, err
		}
		return nil, csdl.ErrSkipReference
	})
}

// readFile reads and resolves one document.
func (a *app) readFile(ctx context.Context, path string) (*edm.Model, edm.Errors, error) {
	r, err := a.reader(path)
	if err != nil {
		return nil, nil, err
	}
	return readWith(ctx, r, path)
}

func readWith(ctx context.Context, r *csdl.Reader, path string) (*edm.Model, edm.Errors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return r.Read(ctx, f, path)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			titleColor.Fprint(out, "csdl version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}
