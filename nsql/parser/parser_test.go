package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	lex "monodb/nsql/lexer"
)

func parse(t *testing.T, input string) Statement {
	t.Helper()
	stmt, err := Parse(input)
	require.NoError(t, err)
	return stmt
}

func TestParseTellAddRecord(t *testing.T) {
	stmt := parse(t, "TELL users TO ADD RECORD WITH id = 1, name = 'John Doe', email = 'john@example.com'")
	s, ok := stmt.(*TellAddRecordStmt)
	require.True(t, ok)
	require.Equal(t, "users", s.Table)
	require.Len(t, s.Columns, 3)
	require.Equal(t, "id", s.Columns[0].Column)
	require.Equal(t, ValueInt, s.Columns[0].Value.Kind)
	require.EqualValues(t, 1, s.Columns[0].Value.Int)
	require.Equal(t, "name", s.Columns[1].Column)
	require.Equal(t, ValueString, s.Columns[1].Value.Kind)
	require.Equal(t, "John Doe", s.Columns[1].Value.Raw)
}

func TestParseTellUpdate(t *testing.T) {
	stmt := parse(t, "TELL users TO UPDATE name = 'John Smith' WHERE id = 1")
	s, ok := stmt.(*TellUpdateStmt)
	require.True(t, ok)
	require.Equal(t, "users", s.Table)
	require.Len(t, s.Assignments, 1)
	require.Equal(t, "name", s.Assignments[0].Column)
	require.Equal(t, "id", s.Condition.Column)
}

func TestParseTellRemove(t *testing.T) {
	stmt := parse(t, "TELL users TO REMOVE WHERE id = 1")
	s, ok := stmt.(*TellRemoveStmt)
	require.True(t, ok)
	require.Equal(t, "users", s.Table)
	require.EqualValues(t, 1, s.Condition.Value.Int)
}

func TestParseTellAddColumnWithDefault(t *testing.T) {
	stmt := parse(t, "TELL users TO ADD email_verified AS BOOLEAN DEFAULT FALSE")
	s, ok := stmt.(*TellAddColumnStmt)
	require.True(t, ok)
	require.Equal(t, "email_verified", s.Column)
	require.Equal(t, "BOOLEAN", s.Type)
	require.True(t, s.HasDefault)
	require.Equal(t, ValueBool, s.Default.Kind)
	require.False(t, s.Default.Bool)
}

func TestParseAsk(t *testing.T) {
	stmt := parse(t, "ASK users WHERE id = 1")
	s, ok := stmt.(*AskStmt)
	require.True(t, ok)
	require.Equal(t, "ASK QUERY", s.NodeLabel())
}

func TestParseFindWithoutWhere(t *testing.T) {
	stmt := parse(t, "FIND name, email FROM users")
	s, ok := stmt.(*FindStmt)
	require.True(t, ok)
	require.Equal(t, []string{"name", "email"}, s.Fields)
	require.False(t, s.HasWhere)
}

func TestParseShow(t *testing.T) {
	stmt := parse(t, "SHOW TABLES")
	s, ok := stmt.(*ShowStmt)
	require.True(t, ok)
	require.Equal(t, "TABLES", s.Target)
}

func TestParseInvalidStatementReturnsError(t *testing.T) {
	_, err := Parse("NOT A REAL STATEMENT")
	require.Error(t, err)
}

func TestLexerRecognizesKeywords(t *testing.T) {
	require.Equal(t, lex.TELL, lex.KeyIdentKind("tell"))
	require.Equal(t, lex.BOOL, lex.KeyIdentKind("TRUE"))
	require.Equal(t, lex.IDENT, lex.KeyIdentKind("users"))
}
