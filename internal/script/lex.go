package script

import (
	"fmt"
	"slices"
	"strings"
)

// SyntaxError reports malformed score text.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg) }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokNumber
	tokString
	tokName
	tokOp
)

type token struct {
	kind      tokenKind
	text      string
	line, col int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "newline"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

var twoCharOps = []string{"==", "!=", "<=", ">="}

const oneCharOps = "()[]{},=+-*/&:.<>;"

// lex splits src into tokens. Newlines inside parentheses and brackets are
// dropped so long calls can span lines.
func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	depth := 0
	i := 0
	emit := func(kind tokenKind, text string, l, c int) {
		toks = append(toks, token{kind: kind, text: text, line: l, col: c})
	}
	advance := func(n int) {
		for k := 0; k < n; k++ {
			if src[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == '\n':
			if depth == 0 {
				emit(tokNewline, "\n", line, col)
			}
			advance(1)
		case ch == ' ' || ch == '\t' || ch == '\r':
			advance(1)
		case ch == '#':
			for i < len(src) && src[i] != '\n' {
				advance(1)
			}
		case ch == '\'' || ch == '"':
			l, c := line, col
			j := i + 1
			var sb strings.Builder
			for j < len(src) && src[j] != ch {
				if src[j] == '\n' {
					return nil, &SyntaxError{Line: l, Col: c, Msg: "unterminated string"}
				}
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, &SyntaxError{Line: l, Col: c, Msg: "unterminated string"}
			}
			emit(tokString, sb.String(), l, c)
			advance(j + 1 - i)
		case isDigit(ch) || ch == '.' && i+1 < len(src) && isDigit(src[i+1]):
			j := i
			for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
				k := j + 1
				if k < len(src) && (src[k] == '+' || src[k] == '-') {
					k++
				}
				if k < len(src) && isDigit(src[k]) {
					for k < len(src) && isDigit(src[k]) {
						k++
					}
					j = k
				}
			}
			emit(tokNumber, src[i:j], line, col)
			advance(j - i)
		case isNameStart(ch):
			j := i
			for j < len(src) && (isNameStart(src[j]) || isDigit(src[j])) {
				j++
			}
			emit(tokName, src[i:j], line, col)
			advance(j - i)
		default:
			if i+1 < len(src) {
				if op := src[i : i+2]; slices.Contains(twoCharOps, op) {
					emit(tokOp, op, line, col)
					advance(2)
					continue
				}
			}
			if !strings.ContainsRune(oneCharOps, rune(ch)) {
				return nil, &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf("unexpected character %q", ch)}
			}
			switch ch {
			case '(', '[':
				depth++
			case ')', ']':
				if depth > 0 {
					depth--
				}
			}
			emit(tokOp, string(ch), line, col)
			advance(1)
		}
	}
	emit(tokEOF, "", line, col)
	return toks, nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isNameStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}
