package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/nlstn/go-csdl"
	"github.com/nlstn/go-csdl/internal/observability"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Serve a CSDL document as $metadata",
		Long: `Serves the document at /$metadata in XML or JSON, chosen by $format or the Accept
header. The file is read again for every request, and the Server-Timing response header
reports the parse and write phases.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			h, err := a.metadataHandler(args[0])
			if err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/$metadata", h)
			srv := &http.Server{
				Addr:              addr,
				Handler:           observability.ServerTimingMiddleware(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}
			color.New(color.FgCyan).Fprintf(cmd.ErrOrStderr(), "Serving %s at http://%s/$metadata\n", args[0], displayAddr(addr))
			return serve(cmd.Context(), srv, a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from serve.addr)")
	return cmd
}

func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down metadata server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// metadataHandler reads path on every request with server timing enabled. The reader
// and writer are shared by all requests.
func (a *app) metadataHandler(path string) (http.Handler, error) {
	obs := csdl.ObservabilityConfig{ServiceName: "csdl-serve", ServiceVersion: Version, EnableServerTiming: true}
	r, err := a.reader(path)
	if err != nil {
		return nil, err
	}
	if err := r.SetObservability(obs); err != nil {
		return nil, err
	}
	w := csdl.NewWriter()
	w.SetLogger(a.logger)
	if err := w.SetObservability(obs); err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			rw.Header().Set("Allow", "GET, HEAD")
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		format := negotiate(req)
		m, errs, err := readWith(req.Context(), r, path)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(errs) > 0 {
			a.logger.Warn("Document has errors", "path", path, "errors", len(errs))
		}
		var buf bytes.Buffer
		if err := w.Write(req.Context(), &buf, m, format); err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", contentType(format))
		rw.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
		rw.WriteHeader(http.StatusOK)
		if req.Method == http.MethodGet {
			_, _ = rw.Write(buf.Bytes())
		}
	}), nil
}

// negotiate picks JSON for $format=json or a JSON Accept header, and XML otherwise.
func negotiate(req *http.Request) csdl.Format {
	if f := req.URL.Query().Get("$format"); f != "" {
		if format, err := csdl.ParseFormat(f); err == nil {
			return format
		}
	}
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		return csdl.FormatJSON
	}
	return csdl.FormatXML
}

func contentType(f csdl.Format) string {
	if f == csdl.FormatJSON {
		return "application/json"
	}
	return "application/xml"
}
