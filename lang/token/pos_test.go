package token

import "testing"

func TestMakePosLineCol(t *testing.T) {
	p := MakePos(12, 34)
	l, c := p.LineCol()
	if l != 12 || c != 34 {
		t.Errorf("LineCol() = (%d, %d), want (12, 34)", l, c)
	}
}

func TestPosUnknown(t *testing.T) {
	if !(Pos(0)).Unknown() {
		t.Error("zero Pos should be Unknown")
	}
	p := MakePos(1, 1)
	if p.Unknown() {
		t.Error("MakePos(1, 1) should not be Unknown")
	}
}

func TestPosString(t *testing.T) {
	if got := Pos(0).String(); got != "-" {
		t.Errorf("Pos(0).String() = %q, want %q", got, "-")
	}
	p := MakePos(3, 7)
	if got := p.String(); got != "3:7" {
		t.Errorf("String() = %q, want %q", got, "3:7")
	}
}

func TestMaxLinesCols(t *testing.T) {
	p := MakePos(MaxLines, MaxCols)
	l, c := p.LineCol()
	if l != MaxLines || c != MaxCols {
		t.Errorf("LineCol() = (%d, %d), want (%d, %d)", l, c, MaxLines, MaxCols)
	}
}
