package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/nlstn/go-csdl"
	"github.com/nlstn/go-csdl/edm"
	"github.com/spf13/cobra"
)

func newConvertCommand(a *app) *cobra.Command {
	var (
		to     string
		output string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a CSDL document between XML and JSON",
		Long: `Reads an XML or JSON CSDL document and writes it in the requested format.
Problems found while reading are reported on stderr; with --strict they fail the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				to = a.cfg.Output.Format
			}
			format, err := csdl.ParseFormat(to)
			if err != nil {
				return err
			}
			m, errs, err := a.readFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDiagnostics(cmd.ErrOrStderr(), errs)
			if strict && len(errs) > 0 {
				return fmt.Errorf("%s has %d errors", args[0], len(errs))
			}

			w := csdl.NewWriter()
			w.SetLogger(a.logger)
			var buf bytes.Buffer
			if err := w.Write(cmd.Context(), &buf, m, format); err != nil {
				return err
			}
			if output == "" {
				_, err = io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target format: xml or json (default from output.format)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the document has errors")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Read and validate CSDL documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := csdl.NewValidator()
			v.SetLogger(a.logger)
			out := cmd.OutOrStdout()
			invalid := 0
			for _, path := range args {
				m, errs, err := a.readFile(cmd.Context(), path)
				if err != nil {
					color.New(color.FgRed, color.Bold).Fprintf(out, "✗ %s\n", path)
					fmt.Fprintf(out, "  %v\n", err)
					invalid++
					continue
				}
				_, verrs := v.Validate(cmd.Context(), m)
				errs = mergeErrors(errs, verrs)
				if len(errs) == 0 {
					color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ %s\n", path)
					continue
				}
				invalid++
				color.New(color.FgRed, color.Bold).Fprintf(out, "✗ %s (%d errors)\n", path, len(errs))
				printDiagnostics(out, errs)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d documents are invalid", invalid, len(args))
			}
			return nil
		},
	}
}

// mergeErrors appends the validation errors that are not already among the read errors.
// Resolution errors are reported by both.
func mergeErrors(read, validation edm.Errors) edm.Errors {
	seen := make(map[edm.Error]bool, len(read))
	for _, e := range read {
		seen[e] = true
	}
	for _, e := range validation {
		if !seen[e] {
			read = append(read, e)
			seen[e] = true
		}
	}
	return read
}

// printDiagnostics writes one line per error: location, code and message.
func printDiagnostics(w io.Writer, errs edm.Errors) {
	codeColor := color.New(color.FgRed)
	locationColor := color.New(color.Faint)
	for _, e := range errs {
		var b strings.Builder
		b.WriteString("  ")
		if !e.Location.IsZero() {
			b.WriteString(locationColor.Sprint(e.Location.String()))
			b.WriteString(": ")
		}
		b.WriteString(codeColor.Sprint(string(e.Code)))
		b.WriteString(": ")
		b.WriteString(e.Message)
		fmt.Fprintln(w, b.String())
	}
}
