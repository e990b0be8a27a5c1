package nsql

import (
	"fmt"
	"strconv"
	"strings"

	"monodb/nsql/parser"
)

// Canonical re-serializes stmt back into NSQL source text. It exists
// because the WAL's data-bearing payloads are the literal NSQL statement
// text, not a binary encoding — round-tripping a TELL statement through
// Parse then Canonical must reproduce it byte-for-byte for the forms the
// sample payloads use.
func Canonical(stmt parser.Statement) string {
	switch s := stmt.(type) {
	case *parser.TellAddRecordStmt:
		return fmt.Sprintf("TELL %s TO ADD RECORD WITH %s", s.Table, assignmentList(s.Columns))
	case *parser.TellAddColumnStmt:
		out := fmt.Sprintf("TELL %s TO ADD %s AS %s", s.Table, s.Column, s.Type)
		if s.HasDefault {
			out += " DEFAULT " + literal(s.Default)
		}
		return out
	case *parser.TellUpdateStmt:
		return fmt.Sprintf("TELL %s TO UPDATE %s WHERE %s", s.Table, assignmentList(s.Assignments), condition(s.Condition))
	case *parser.TellRemoveStmt:
		return fmt.Sprintf("TELL %s TO REMOVE WHERE %s", s.Table, condition(s.Condition))
	case *parser.AskStmt:
		return fmt.Sprintf("ASK %s WHERE %s", s.Table, condition(s.Condition))
	case *parser.FindStmt:
		out := fmt.Sprintf("FIND %s FROM %s", strings.Join(s.Fields, ", "), s.Table)
		if s.HasWhere {
			out += " WHERE " + condition(s.Condition)
		}
		return out
	case *parser.ShowStmt:
		return "SHOW " + s.Target
	case *parser.GetStmt:
		return fmt.Sprintf("GET %s %s", s.Table, literal(s.ID))
	default:
		return fmt.Sprintf("<unprintable statement %T>", s)
	}
}

func assignmentList(assignments []parser.Assignment) string {
	parts := make([]string, len(assignments))
	for i, a := range assignments {
		parts[i] = fmt.Sprintf("%s = %s", a.Column, literal(a.Value))
	}
	return strings.Join(parts, ", ")
}

func condition(c parser.Condition) string {
	return fmt.Sprintf("%s = %s", c.Column, literal(c.Value))
}

func literal(v parser.Value) string {
	switch v.Kind {
	case parser.ValueString:
		return "'" + v.Raw + "'"
	case parser.ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case parser.ValueDecimal:
		return v.Raw
	case parser.ValueBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v.Raw
	}
}
