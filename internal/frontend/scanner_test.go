package frontend

import "testing"

func TestScanAllKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []TokenKind
	}{
		{"empty", "", []TokenKind{End}},
		{"punctuators", "(){},.-+;/*", []TokenKind{
			LeftParen, RightParen, LeftBrace, RightBrace, Comma, Dot, Minus, Plus, Semicolon, Slash, Star, End,
		}},
		{"two char operators", "! != = == > >= < <=", []TokenKind{
			Bang, BangEqual, Equal, EqualEqual, Greater, GreaterEqual, Less, LessEqual, End,
		}},
		{"keywords", "and class else false fun for if nil or print return super this true var while", []TokenKind{
			And, Class, Else, False, Fun, For, If, Nil, Or, Print, Return, Super, This, True, Var, While, End,
		}},
		{"identifier not keyword", "classify", []TokenKind{Identifier, End}},
		{"number literal", "3.14", []TokenKind{Number, End}},
		{"string literal", `"hello"`, []TokenKind{String, End}},
		{"line comment ignored", "// comment\nvar", []TokenKind{Var, End}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			toks := scanAll(tc.src)
			if len(toks) != len(tc.want) {
				t.Fatalf("scanAll(%q) produced %d tokens, want %d: %v", tc.src, len(toks), len(tc.want), toks)
			}
			for i, k := range tc.want {
				if toks[i].Kind != k {
					t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
				}
			}
		})
	}
}

func TestScanNumberLiteralValue(t *testing.T) {
	toks := scanAll("12.5")
	if len(toks) < 1 || toks[0].Kind != Number {
		t.Fatalf("expected a single Number token, got %v", toks)
	}
	if toks[0].Literal.(float64) != 12.5 {
		t.Errorf("got literal %v, want 12.5", toks[0].Literal)
	}
}

func TestScanStringLiteralValue(t *testing.T) {
	toks := scanAll(`"a string"`)
	if len(toks) < 1 || toks[0].Kind != String {
		t.Fatalf("expected a single String token, got %v", toks)
	}
	if toks[0].Literal.(string) != "a string" {
		t.Errorf("got literal %q, want %q", toks[0].Literal, "a string")
	}
}

func TestScanUnterminatedStringReportsError(t *testing.T) {
	ResetErrors()
	scanAll(`"unterminated`)
	if !HadError() {
		t.Error("expected an unterminated string to set HadError")
	}
}
