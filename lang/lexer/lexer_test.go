package lexer

import (
	"testing"

	"github.com/mna/tamarin/lang/token"
)

type scanResult struct {
	tok token.Token
	val Value
}

func scanAll(t *testing.T, src string) ([]scanResult, []string) {
	t.Helper()
	var errs []string
	lx := New([]byte(src), func(pos token.Pos, msg string) {
		errs = append(errs, msg)
	})
	var out []scanResult
	for {
		tok, val, _ := lx.Scan()
		out = append(out, scanResult{tok, val})
		if tok == token.EOF {
			return out, errs
		}
	}
}

func tokens(results []scanResult) []token.Token {
	toks := make([]token.Token, len(results))
	for i, r := range results {
		toks[i] = r.tok
	}
	return toks
}

func TestScanIdentsAndKeywords(t *testing.T) {
	results, errs := scanAll(t, "local x = foo")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []token.Token{token.LOCAL, token.IDENT, token.EQ, token.IDENT, token.EOF}
	got := tokens(results)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
	if results[3].val.Str != "foo" {
		t.Errorf("ident value = %q, want %q", results[3].val.Str, "foo")
	}
}

func TestScanNumbers(t *testing.T) {
	results, errs := scanAll(t, "1 1.5 1e3 1_000")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if results[0].tok != token.INT || results[0].val.Int != 1 {
		t.Errorf("got %v %+v, want INT 1", results[0].tok, results[0].val)
	}
	if results[1].tok != token.FLOAT || results[1].val.Float != 1.5 {
		t.Errorf("got %v %+v, want FLOAT 1.5", results[1].tok, results[1].val)
	}
	if results[2].tok != token.FLOAT || results[2].val.Float != 1000 {
		t.Errorf("got %v %+v, want FLOAT 1000", results[2].tok, results[2].val)
	}
	if results[3].tok != token.INT || results[3].val.Int != 1000 {
		t.Errorf("got %v %+v, want INT 1000 (underscore separator stripped)", results[3].tok, results[3].val)
	}
}

func TestScanStrings(t *testing.T) {
	results, errs := scanAll(t, `"a\tb" 'c'`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if results[0].tok != token.STRING || results[0].val.Str != "a\tb" {
		t.Errorf("got %v %+v, want STRING \"a\\tb\"", results[0].tok, results[0].val)
	}
	if results[1].tok != token.STRING || results[1].val.Str != "c" {
		t.Errorf("got %v %+v, want STRING \"c\"", results[1].tok, results[1].val)
	}
}

func TestScanLongString(t *testing.T) {
	results, errs := scanAll(t, "[[hello\nworld]]")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if results[0].tok != token.STRING || results[0].val.Str != "hello\nworld" {
		t.Errorf("got %v %+v, want STRING \"hello\\nworld\"", results[0].tok, results[0].val)
	}
}

func TestScanUnterminatedString(t *testing.T) {
	_, errs := scanAll(t, `"abc`)
	if len(errs) == 0 {
		t.Fatal("expected an unterminated string error")
	}
}

func TestScanComments(t *testing.T) {
	results, errs := scanAll(t, "-- a comment\nlocal x")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []token.Token{token.LOCAL, token.IDENT, token.EOF}
	got := tokens(results)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScanOperators(t *testing.T) {
	results, errs := scanAll(t, "+ - == ~= <= >= .. :: := //")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []token.Token{
		token.PLUS, token.MINUS, token.EQEQ, token.BANGEQ, token.LE, token.GE,
		token.DOTDOT, token.COLONCOLON, token.WALRUS, token.SLASHSLASH, token.EOF,
	}
	got := tokens(results)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanIllegalCharacter(t *testing.T) {
	results, errs := scanAll(t, "@")
	if len(errs) == 0 {
		t.Fatal("expected an error for an illegal character")
	}
	if results[0].tok != token.ILLEGAL {
		t.Errorf("got %v, want ILLEGAL", results[0].tok)
	}
}

func TestScanEOFIsSticky(t *testing.T) {
	lx := New([]byte(""), nil)
	tok1, _, _ := lx.Scan()
	tok2, _, _ := lx.Scan()
	if tok1 != token.EOF || tok2 != token.EOF {
		t.Errorf("got %v then %v, want EOF then EOF", tok1, tok2)
	}
}
