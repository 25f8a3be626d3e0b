package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextToken_BasicTokens(t *testing.T) {
	input := `( ) { } [ ] , ; : . ..`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenColon, ":"},
		{TokenDot, "."},
		{TokenDotDot, ".."},
		{TokenEOF, ""},
	}

	l := New("test.hk", input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equalf(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
}

func TestNextToken_Operators(t *testing.T) {
	input := `+ - * / ~/ % += -= *= /= %= ++ -- = == != < <= > >= ! && || & | ^ << >>`

	tests := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenSlashTilde, TokenPercent,
		TokenPlusEq, TokenMinusEq, TokenStarEq, TokenSlashEq, TokenPercentEq,
		TokenPlusPlus, TokenMinusMinus,
		TokenAssign, TokenEq, TokenNotEq, TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq,
		TokenBang, TokenAnd, TokenOr, TokenAmp, TokenPipe, TokenCaret, TokenShl, TokenShr,
	}

	l := New("test.hk", input)
	for i, want := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, want, tok.Type, "tests[%d]: %q", i, tok.Literal)
	}
}

func TestNextToken_Keywords(t *testing.T) {
	input := `as break continue del do else false fn for foreach from if if! import in let loop match mut nil return struct true while while! _`

	tests := []TokenType{
		TokenAs, TokenBreak, TokenContinue, TokenDel, TokenDo, TokenElse, TokenFalse,
		TokenFn, TokenFor, TokenForeach, TokenFrom, TokenIf, TokenIfBang, TokenImport,
		TokenIn, TokenLet, TokenLoop, TokenMatch, TokenMut, TokenNil, TokenReturn,
		TokenStruct, TokenTrue, TokenWhile, TokenWhileBang, TokenUnderscore,
	}

	l := New("test.hk", input)
	for i, want := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, want, tok.Type, "tests[%d]: %q", i, tok.Literal)
	}
}

func TestNextToken_Numbers(t *testing.T) {
	input := `0 42 3.14 1e10 2.5e-3 0 1.0`

	tests := []struct {
		typ     TokenType
		literal string
	}{
		{TokenInteger, "0"},
		{TokenInteger, "42"},
		{TokenFloat, "3.14"},
		{TokenFloat, "1e10"},
		{TokenFloat, "2.5e-3"},
		{TokenInteger, "0"},
		{TokenFloat, "1.0"},
	}

	l := New("test.hk", input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equalf(t, tt.typ, tok.Type, "tests[%d]", i)
		require.Equalf(t, tt.literal, tok.Literal, "tests[%d]", i)
	}
}

func TestNextToken_StringEscapes(t *testing.T) {
	// The 10-char source \tte\r\nst inside quotes decodes to the 7
	// bytes \t t e \r \n s t (spec.md §8, "Scan: escape sequences").
	input := `"\tte\r\nst"`

	l := New("test.hk", input)
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, "\tte\r\nst", tok.Literal)
}

func TestNextToken_SingleAndDoubleQuoted(t *testing.T) {
	l := New("test.hk", `'single' "double"`)

	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, "single", tok.Literal)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, "double", tok.Literal)
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := New("test.hk", `"abc`)
	_, err := l.NextToken()
	require.Error(t, err)
	var lexErr *LexicalError
	require.ErrorAs(t, err, &lexErr)
}

func TestNextToken_Identifiers(t *testing.T) {
	l := New("test.hk", `foo bar_baz _private x1`)
	for _, want := range []string{"foo", "bar_baz", "_private", "x1"} {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equal(t, TokenIdentifier, tok.Type)
		require.Equal(t, want, tok.Literal)
	}
}

func TestNextToken_CommentsAndShebang(t *testing.T) {
	l := New("test.hk", "#!/usr/bin/env hook\nlet x = 1 // trailing comment\n")

	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenLet, tok.Type)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenIdentifier, tok.Type)
	require.Equal(t, "x", tok.Literal)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenAssign, tok.Type)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenInteger, tok.Type)
	require.Equal(t, "1", tok.Literal)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, TokenEOF, tok.Type)
}

func TestNextToken_LineTracking(t *testing.T) {
	l := New("test.hk", "let\nx")
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, 1, tok.Line)

	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, 2, tok.Line)
}
