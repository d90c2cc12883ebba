package docstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nlstn/go-csdl/internal/semantics"
)

const commonXML = `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema Namespace="Common" xmlns="http://docs.oasis-open.org/odata/ns/edm" />
  </edmx:DataServices>
</edmx:Edmx>`

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	doc, changed, err := s.Put(ctx, "common.xml", []byte(commonXML))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !changed {
		t.Error("Expected first put to change the store")
	}
	if doc.Format != "xml" {
		t.Errorf("Expected format xml, got %q", doc.Format)
	}
	if doc.Hash != Hash([]byte(commonXML)) {
		t.Errorf("Expected hash %s, got %s", Hash([]byte(commonXML)), doc.Hash)
	}

	got, err := s.Get(ctx, "common.xml")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Content) != commonXML {
		t.Errorf("Expected stored content, got %q", got.Content)
	}
	if got.Size != len(commonXML) {
		t.Errorf("Expected size %d, got %d", len(commonXML), got.Size)
	}
}

func TestPutUnchangedAndUpdated(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, _, err := s.Put(ctx, "a.json", []byte(`{"$Version": "4.01"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_, changed, err := s.Put(ctx, "a.json", []byte(`{"$Version": "4.01"}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if changed {
		t.Error("Expected identical content to leave the document unchanged")
	}
	doc, changed, err := s.Put(ctx, "a.json", []byte(`{"$Version": "4.0"}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !changed {
		t.Error("Expected new content to change the document")
	}
	if doc.Format != "json" {
		t.Errorf("Expected format json, got %q", doc.Format)
	}
	got, err := s.Get(ctx, "a.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Content) != `{"$Version": "4.0"}` {
		t.Errorf("Expected updated content, got %q", got.Content)
	}
}

func TestListAndDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, uri := range []string{"b.xml", "a.xml", "c.xml"} {
		if _, _, err := s.Put(ctx, uri, []byte(commonXML)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(docs))
	}
	for i, want := range []string{"a.xml", "b.xml", "c.xml"} {
		if docs[i].URI != want {
			t.Errorf("Expected %s at %d, got %s", want, i, docs[i].URI)
		}
		if docs[i].Content != nil {
			t.Errorf("Expected List to omit content of %s", docs[i].URI)
		}
	}

	if err := s.Delete(ctx, "b.xml"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "b.xml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "b.xml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestLoadReference(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, _, err := s.Put(ctx, "common.xml", []byte(commonXML)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := s.LoadReference(ctx, "common.xml")
	if err != nil {
		t.Fatalf("LoadReference failed: %v", err)
	}
	if string(data) != commonXML {
		t.Errorf("Expected stored content, got %q", data)
	}
	if _, err := s.LoadReference(ctx, "missing.xml"); !errors.Is(err, semantics.ErrSkipReference) {
		t.Errorf("Expected ErrSkipReference for an unknown URI, got %v", err)
	}
}

func TestOpenSQL(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	s, err := OpenSQL(DialectSQLite, conn)
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	if _, _, err := s.Put(context.Background(), "x.xml", []byte(commonXML)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM csdl_documents").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
}

func TestErrors(t *testing.T) {
	if _, err := Open("oracle", ""); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Expected ErrUnknownDialect, got %v", err)
	}
	if _, err := OpenSQL("oracle", nil); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Expected ErrUnknownDialect, got %v", err)
	}
	if _, err := NewFromDB(nil); err == nil {
		t.Error("Expected error for nil database")
	}
	s := openStore(t)
	if _, _, err := s.Put(context.Background(), "", []byte(commonXML)); !errors.Is(err, ErrEmptyURI) {
		t.Errorf("Expected ErrEmptyURI, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"<edmx:Edmx/>":       "xml",
		"\xef\xbb\xbf  <a/>": "xml",
		"\n{}":               "json",
		"text":               "",
	}
	for in, want := range tests {
		if got := detectFormat([]byte(in)); got != want {
			t.Errorf("Expected %q for %q, got %q", want, in, got)
		}
	}
}
