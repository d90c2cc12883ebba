package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nlstn/go-csdl/internal/observability"
)

const personXML = `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="NS" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <EntityType Name="Person">
        <Key><PropertyRef Name="ID" /></Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
      </EntityType>
      <EntityContainer Name="Default">
        <EntitySet Name="People" EntityType="NS.Person" />
      </EntityContainer>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

const brokenXML = `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="NS" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <EntityType Name="Person">
        <Property Name="Home" Type="NS.Missing" />
      </EntityType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

const commonXML = `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="Common" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <ComplexType Name="Address">
        <Property Name="City" Type="Edm.String" />
      </ComplexType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

const referencingXML = `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:Reference Uri="common.xml">
    <edmx:Include Namespace="Common" />
  </edmx:Reference>
  <edmx:DataServices>
    <Schema Namespace="NS" xmlns="http://docs.oasis-open.org/odata/ns/edm">
      <ComplexType Name="Customer">
        <Property Name="Address" Type="Common.Address" />
      </ComplexType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "csdl" {
		t.Errorf("Expected Use to be 'csdl', got %s", cmd.Use)
	}
	for _, expected := range []string{"version", "convert", "validate", "store", "serve"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected command %s to be registered", expected)
		}
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, Version) {
		t.Errorf("Expected version %s in output, got %q", Version, out)
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "person.xml", personXML)

	out, _, err := run(t, "convert", path, "--to", "json")
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(out, `"$Version"`) || !strings.Contains(out, "Person") {
		t.Errorf("Expected JSON CSDL output, got %q", out)
	}

	target := filepath.Join(dir, "person.json")
	if _, _, err := run(t, "convert", path, "-o", target); err != nil {
		t.Fatalf("convert to file failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		t.Errorf("Expected JSON in %s by default, got %q", target, data)
	}

	back, _, err := run(t, "convert", target, "--to", "xml")
	if err != nil {
		t.Fatalf("convert back failed: %v", err)
	}
	if !strings.Contains(back, `EntityType Name="Person"`) {
		t.Errorf("Expected XML CSDL output, got %q", back)
	}
}

func TestConvertReportsErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.xml", brokenXML)

	_, stderr, err := run(t, "convert", path)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.Contains(stderr, "BadUnresolvedType") {
		t.Errorf("Expected diagnostics on stderr, got %q", stderr)
	}
	if _, _, err := run(t, "convert", path, "--strict"); err == nil {
		t.Error("Expected --strict to fail for a document with errors")
	}
	if _, _, err := run(t, "convert", path, "--to", "yaml"); err == nil {
		t.Error("Expected error for an unknown target format")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "person.xml", personXML)
	bad := writeFile(t, dir, "broken.xml", brokenXML)

	out, _, err := run(t, "validate", good)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "✓ "+good) {
		t.Errorf("Expected success line, got %q", out)
	}

	out, _, err = run(t, "validate", good, bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("Expected 1 of 2 documents to be invalid, got %v", err)
	}
	if !strings.Contains(out, "KeyMissingOnEntityType") {
		t.Errorf("Expected validation diagnostics, got %q", out)
	}
}

func TestReferencesFromFileSystem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.xml", commonXML)
	path := writeFile(t, dir, "customer.xml", referencingXML)

	out, _, err := run(t, "validate", path)
	if err != nil {
		t.Fatalf("Expected reference next to the document to resolve, got %v\n%s", err, out)
	}
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CSDL_STORE_DSN", filepath.Join(dir, "docs.db"))
	common := writeFile(t, dir, "common-v1.xml", commonXML)

	out, _, err := run(t, "store", "put", common, "--uri", "common.xml")
	if err != nil {
		t.Fatalf("store put failed: %v", err)
	}
	if !strings.Contains(out, "stored common.xml") {
		t.Errorf("Expected stored message, got %q", out)
	}
	out, _, err = run(t, "store", "put", common, "--uri", "common.xml")
	if err != nil || !strings.Contains(out, "unchanged common.xml") {
		t.Errorf("Expected unchanged message, got %q (%v)", out, err)
	}

	out, _, err = run(t, "store", "list")
	if err != nil {
		t.Fatalf("store list failed: %v", err)
	}
	if !strings.Contains(out, "common.xml") || !strings.Contains(out, "xml") {
		t.Errorf("Expected stored document in list, got %q", out)
	}

	out, _, err = run(t, "store", "get", "common.xml")
	if err != nil || out != commonXML {
		t.Errorf("Expected stored content, got %q (%v)", out, err)
	}

	// The referencing document lives elsewhere, so only the store can resolve common.xml.
	other := t.TempDir()
	path := writeFile(t, other, "customer.xml", referencingXML)
	if _, _, err := run(t, "validate", path); err == nil {
		t.Error("Expected validation to fail without the store")
	}
	t.Setenv("CSDL_REFERENCES_USE_STORE", "true")
	if out, _, err := run(t, "validate", path); err != nil {
		t.Errorf("Expected the store to resolve the reference, got %v\n%s", err, out)
	}

	if _, _, err := run(t, "store", "delete", "common.xml"); err != nil {
		t.Fatalf("store delete failed: %v", err)
	}
	if _, _, err := run(t, "store", "get", "common.xml"); err == nil {
		t.Error("Expected error getting a deleted document")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", `
store:
  dsn: /tmp/documents.db
references:
  use_store: true
serve:
  addr: 127.0.0.1:9000
log:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Dialect != "sqlite" {
		t.Errorf("Expected default dialect sqlite, got %s", cfg.Store.Dialect)
	}
	if cfg.Store.DSN != "/tmp/documents.db" {
		t.Errorf("Expected dsn from file, got %s", cfg.Store.DSN)
	}
	if !cfg.References.UseStore {
		t.Error("Expected use_store from file")
	}
	if cfg.Serve.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr from file, got %s", cfg.Serve.Addr)
	}

	t.Setenv("CSDL_SERVE_ADDR", ":7000")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serve.Addr != ":7000" {
		t.Errorf("Expected environment to override file, got %s", cfg.Serve.Addr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
	bad := writeFile(t, t.TempDir(), "bad.yaml", "store:\n  dialect: oracle\n")
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for an unknown dialect")
	}
}

func TestMetadataHandler(t *testing.T) {
	path := writeFile(t, t.TempDir(), "person.xml", personXML)
	a := &app{}
	if err := a.init(io.Discard); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	h, err := a.metadataHandler(path)
	if err != nil {
		t.Fatalf("metadataHandler failed: %v", err)
	}
	srv := httptest.NewServer(observability.ServerTimingMiddleware(h))
	defer srv.Close()

	tests := []struct {
		name        string
		query       string
		accept      string
		contentType string
	}{
		{"default xml", "", "", "application/xml"},
		{"format parameter", "?$format=json", "", "application/json"},
		{"accept header", "", "application/json", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/"+tt.query, nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.contentType {
				t.Errorf("Expected Content-Type %s, got %s", tt.contentType, got)
			}
			timing := resp.Header.Get("Server-Timing")
			if !strings.Contains(timing, "parse") || !strings.Contains(timing, "write") {
				t.Errorf("Expected parse and write phases in Server-Timing, got %q", timing)
			}
		})
	}

	resp, err := http.Post(srv.URL, "text/plain", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}
