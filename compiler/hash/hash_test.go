package hash

import (
	"bytes"
	"testing"

	"github.com/chazu/loom/compiler"
)

func parseMethod(t *testing.T, source string) *compiler.MethodDef {
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

func TestHashDeterministic(t *testing.T) {
	def := parseMethod(t, "Point >> moveBy: dx and: dy [ x := x + dx. y := y + dy. ^ self ]")

	h1, err := HashMethod(def)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashMethod(def)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("same definition hashed differently across calls")
	}
}

func TestHashIgnoresFormatting(t *testing.T) {
	a := parseMethod(t, "Point >> moveBy: dx [ x := x + dx. ^ self ]")
	b := parseMethod(t, `Point >> moveBy: dx [
		# movement
		x := x + dx.
		^ self
	]`)

	ha, _ := HashMethod(a)
	hb, _ := HashMethod(b)
	if ha != hb {
		t.Error("formatting and comments changed the fingerprint")
	}
}

func TestHashIgnoresReceiver(t *testing.T) {
	a := parseMethod(t, "Point >> reset [ x := 0 ]")
	b := parseMethod(t, "Vector >> reset [ x := 0 ]")

	ha, _ := HashMethod(a)
	hb, _ := HashMethod(b)
	if ha != hb {
		t.Error("the receiver expression must not affect the fingerprint")
	}
}

func TestHashDistinguishesBodies(t *testing.T) {
	a := parseMethod(t, "Point >> reset [ x := 0 ]")
	b := parseMethod(t, "Point >> reset [ x := 1 ]")

	ha, _ := HashMethod(a)
	hb, _ := HashMethod(b)
	if ha == hb {
		t.Error("different bodies hashed the same")
	}
}

func TestHashDistinguishesSelectors(t *testing.T) {
	a := parseMethod(t, "Point >> clear [ x := 0 ]")
	b := parseMethod(t, "Point >> reset [ x := 0 ]")

	ha, _ := HashMethod(a)
	hb, _ := HashMethod(b)
	if ha == hb {
		t.Error("different selectors hashed the same")
	}
}

func TestSerializeStable(t *testing.T) {
	def := parseMethod(t, "Point >> reset [ x := 0. ^ self ]")

	s1, err := Serialize(def)
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := Serialize(def)
	if !bytes.Equal(s1, s2) {
		t.Error("canonical serialization is not byte-stable")
	}
	if len(s1) == 0 {
		t.Error("empty serialization")
	}
}

func TestHashCoversBlocksAndSupers(t *testing.T) {
	a := parseMethod(t, "B >> each: c [ c do: [:e | super foo: e] ]")
	b := parseMethod(t, "B >> each: c [ c do: [:e | super bar: e] ]")

	ha, err := HashMethod(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := HashMethod(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Error("super selectors inside blocks did not affect the fingerprint")
	}
}
