package frontend

import "fmt"

// TokenKind enumerates punctuators, one/two character operators, literals, keywords and END.
type TokenKind int

const (
	// Single-character tokens.
	LeftParen TokenKind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character tokens.
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	And
	Class
	Else
	False
	Fun
	For
	If
	Nil
	Or
	Print
	Return
	Super
	This
	True
	Var
	While

	End
)

var kindNames = map[TokenKind]string{
	LeftParen: "(", RightParen: ")", LeftBrace: "{", RightBrace: "}",
	Comma: ",", Dot: ".", Minus: "-", Plus: "+", Semicolon: ";", Slash: "/", Star: "*",
	Bang: "!", BangEqual: "!=", Equal: "=", EqualEqual: "==",
	Greater: ">", GreaterEqual: ">=", Less: "<", LessEqual: "<=",
	Identifier: "IDENTIFIER", String: "STRING", Number: "NUMBER",
	And: "and", Class: "class", Else: "else", False: "false", Fun: "fun", For: "for",
	If: "if", Nil: "nil", Or: "or", Print: "print", Return: "return", Super: "super",
	This: "this", True: "true", Var: "var", While: "while", End: "EOF",
}

func (k TokenKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// keywords maps the 16 reserved words to their token kinds; everything else lexes as Identifier.
var keywords = map[string]TokenKind{
	"and": And, "class": Class, "else": Else, "false": False, "for": For, "fun": Fun,
	"if": If, "nil": Nil, "or": Or, "print": Print, "return": Return, "super": Super,
	"this": This, "true": True, "var": Var, "while": While,
}

// Token is (kind, lexeme slice, literal, line). Literal is one of string, float64, bool or nil.
type Token struct {
	Kind    TokenKind
	Lexeme  string
	Literal interface{}
	Line    int
}

func (t Token) String() string {
	if len(t.Lexeme) > 12 {
		return fmt.Sprintf("%.9q... (line %d)", t.Lexeme, t.Line)
	}
	return fmt.Sprintf("%q (line %d)", t.Lexeme, t.Line)
}
