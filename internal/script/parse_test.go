package script

import (
	"errors"
	"testing"
)

func parseExpr(t *testing.T, src string) Expr {
	t.Helper()
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	if len(stmts) != 1 {
		t.Fatalf("parse %q: %d statements, want 1", src, len(stmts))
	}
	st, ok := stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("parse %q: got %T, want expression", src, stmts[0])
	}
	return st.X
}

func TestParseCanonicalForm(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a - b - c", "((a - b) - c)"},
		{"-x", "(-x)"},
		{"-2.5", "-2.5"},
		{"a & b + c", "(a & (b + c))"},
		{"x < 1 and not y", "((x < 1) and (not y))"},
		{"a == b or c != d", "((a == b) or (c != d))"},
		{`V("1 2")[1:]`, `V("1 2")[1:]`},
		{`V('1 2')[:-1]`, `V("1 2")[:-1]`},
		{"p[3]", "p[3]"},
		{"f(1, k = 2)", "f(1, k=2)"},
		{"x.of(2)", "x.of(2)"},
		{"1,", "(1,)"},
		{"1, 2", "(1, 2)"},
		{"[1, 2,]", "[1, 2]"},
		{"[]", "[]"},
		{"()", "()"},
		{"(\n  1,\n  2\n)", "(1, 2)"},
		{"f(a, # comment\n b)", "f(a, b)"},
		{"program {tone = 1; level = 15 if frame < 4}", "program {tone = 1; level = 15 if (frame < 4)}"},
		{"program {\n  tone = 1\n  level = 13\n}\nrelease {level = 0}", "program {tone = 1; level = 13} release {level = 0}"},
		{"program {} release {}", "program {} release {}"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			if got := parseExpr(t, tc.src).String(); got != tc.want {
				t.Fatalf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseStatements(t *testing.T) {
	stmts, err := Parse("a = 1\nb, c = 2, 3; del a, b\n\nd")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	if a, ok := stmts[0].(*AssignStmt); !ok || len(a.Targets) != 1 || a.Targets[0] != "a" {
		t.Fatalf("stmt 0 = %#v", stmts[0])
	}
	if a, ok := stmts[1].(*AssignStmt); !ok || len(a.Targets) != 2 || a.Targets[1] != "c" {
		t.Fatalf("stmt 1 = %#v", stmts[1])
	}
	if d, ok := stmts[2].(*DelStmt); !ok || len(d.Names) != 2 {
		t.Fatalf("stmt 2 = %#v", stmts[2])
	}
	if line, _ := stmts[3].pos(); line != 4 {
		t.Fatalf("stmt 3 on line %d, want 4", line)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
	}{
		{"x = (1", 1},
		{"x = 1 +", 1},
		{"x = 1\ny = )", 2},
		{`x = "abc`, 1},
		{"del 1", 1},
		{"1 = x", 1},
		{"program {1 = 2}", 1},
		{"x = program {tone}", 1},
		{"x = f(a=1, a 2)", 1},
		{"x = $", 1},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			_, err := Parse(tc.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want SyntaxError", err)
			}
			if se.Line != tc.line {
				t.Fatalf("error on line %d, want %d: %v", se.Line, tc.line, se)
			}
		})
	}
}
