package store

import (
	"path/filepath"
	"testing"

	"github.com/chazu/loom/compiler"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "methods.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func methodDef(t *testing.T, source string) *compiler.MethodDef {
	t.Helper()
	stmts, err := compiler.Parse(source)
	if err != nil {
		t.Fatal(err)
	}
	def, ok := stmts[0].(*compiler.MethodDef)
	if !ok {
		t.Fatalf("statement is %T, want *MethodDef", stmts[0])
	}
	return def
}

func TestRecordAndLookup(t *testing.T) {
	st := openTemp(t)
	src := "Point >> reset [ x := 0. ^ self ]"
	def := methodDef(t, src)

	fp, err := st.Record("Point", def, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(fp) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp))
	}

	row, err := st.Lookup(fp)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("recorded method not found")
	}
	if row.Class != "Point" || row.Selector != "reset" || row.Source != src {
		t.Errorf("row = %+v", row)
	}
	if row.ClassSide {
		t.Error("unexpected class side")
	}
}

func TestRecordIdempotent(t *testing.T) {
	st := openTemp(t)
	src := "Point >> reset [ x := 0 ]"
	def := methodDef(t, src)

	fp1, err := st.Record("Point", def, src)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := st.Record("Point", def, src)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Error("same body produced different fingerprints")
	}

	n, err := st.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestBySelector(t *testing.T) {
	st := openTemp(t)

	v1 := "Point >> reset [ x := 0 ]"
	v2 := "Point >> reset [ x := 0. y := 0 ]"
	if _, err := st.Record("Point", methodDef(t, v1), v1); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Record("Point", methodDef(t, v2), v2); err != nil {
		t.Fatal(err)
	}

	rows, err := st.BySelector("Point", "reset")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 recorded versions", len(rows))
	}
}

func TestLookupMissing(t *testing.T) {
	st := openTemp(t)
	row, err := st.Lookup("no-such-fingerprint")
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Error("lookup of a missing fingerprint should answer nil")
	}
}

func TestClassSideRecorded(t *testing.T) {
	st := openTemp(t)
	src := "Point class >> origin [ ^ Point new ]"
	def := methodDef(t, src)

	fp, err := st.Record("Point", def, src)
	if err != nil {
		t.Fatal(err)
	}
	row, err := st.Lookup(fp)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || !row.ClassSide {
		t.Error("class-side flag lost")
	}
}
