package token

import "testing"

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		if got := tok.String(); got == "" || got == "unknown token" {
			t.Errorf("missing string representation of token %d", tok)
		}
	}
}

func TestTokenStringOutOfRange(t *testing.T) {
	if got := maxToken.String(); got != "unknown token" {
		t.Errorf("maxToken.String() = %q, want %q", got, "unknown token")
	}
}

func TestKeywords(t *testing.T) {
	for spelling, tok := range Keywords {
		if got := tok.String(); got != spelling {
			t.Errorf("Keywords[%q] = %v, String() = %q", spelling, tok, got)
		}
	}
}

func TestInfixPrecedence(t *testing.T) {
	cases := []struct {
		tok  Token
		prec Precedence
	}{
		{PLUS, PrecTerm},
		{MINUS, PrecTerm},
		{STAR, PrecFactor},
		{SLASH, PrecFactor},
		{DOTDOT, PrecConcat},
		{AND, PrecAnd},
		{OR, PrecOr},
		{EQEQ, PrecEquality},
		{LT, PrecComparison},
		{IDENT, PrecNone},
		{EOF, PrecNone},
	}
	for _, c := range cases {
		if got := c.tok.InfixPrecedence(); got != c.prec {
			t.Errorf("%v.InfixPrecedence() = %v, want %v", c.tok, got, c.prec)
		}
	}
}

func TestRightAssociative(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		want := tok == DOTDOT || tok == CARET
		if got := tok.RightAssociative(); got != want {
			t.Errorf("%v.RightAssociative() = %v, want %v", tok, got, want)
		}
	}
}
