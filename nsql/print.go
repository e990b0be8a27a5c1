// Package nsql ties together the lexer, parser, and AST printer for NSQL,
// the five-verb query language (ASK/TELL/FIND/SHOW/GET) that the WAL's
// sample payloads are written in.
package nsql

import (
	"fmt"
	"strings"

	"monodb/nsql/parser"
)

// Print renders stmt the way original_source/repl/src/main.cpp's
// syntax_highlight expects to find it: a node-type line followed by
// "Property: value" lines, using the exact property vocabulary
// ("Source:", "Fields:", "Condition:", "Left:", "Right:", "Operator:")
// highlighted there.
func Print(stmt parser.Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", stmt.NodeLabel())

	switch s := stmt.(type) {
	case *parser.AskStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		printCondition(&b, s.Condition)
	case *parser.TellAddRecordStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		b.WriteString("  Fields:\n")
		for _, a := range s.Columns {
			fmt.Fprintf(&b, "    %s = %s\n", a.Column, formatValue(a.Value))
		}
	case *parser.TellAddColumnStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		fmt.Fprintf(&b, "  Column: %s AS %s\n", s.Column, s.Type)
		if s.HasDefault {
			fmt.Fprintf(&b, "  Default: %s\n", formatValue(s.Default))
		}
	case *parser.TellUpdateStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		b.WriteString("  Fields:\n")
		for _, a := range s.Assignments {
			fmt.Fprintf(&b, "    %s = %s\n", a.Column, formatValue(a.Value))
		}
		printCondition(&b, s.Condition)
	case *parser.TellRemoveStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		printCondition(&b, s.Condition)
	case *parser.FindStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		fmt.Fprintf(&b, "  Fields: %s\n", strings.Join(s.Fields, ", "))
		if s.HasWhere {
			printCondition(&b, s.Condition)
		}
	case *parser.ShowStmt:
		fmt.Fprintf(&b, "  Target: %s\n", s.Target)
	case *parser.GetStmt:
		fmt.Fprintf(&b, "  Source: %s\n", s.Table)
		fmt.Fprintf(&b, "  Identifier: %s\n", formatValue(s.ID))
	default:
		fmt.Fprintf(&b, "  <unprintable statement %T>\n", s)
	}

	return b.String()
}

func printCondition(b *strings.Builder, c parser.Condition) {
	fmt.Fprintf(b, "  Condition:\n")
	fmt.Fprintf(b, "    Left: %s\n", c.Column)
	fmt.Fprintf(b, "    Operator: =\n")
	fmt.Fprintf(b, "    Right: %s\n", formatValue(c.Value))
}

func formatValue(v parser.Value) string {
	switch v.Kind {
	case parser.ValueString:
		return fmt.Sprintf("STRING:%s", v.Raw)
	case parser.ValueInt:
		return fmt.Sprintf("INTEGER:%d", v.Int)
	case parser.ValueDecimal:
		return fmt.Sprintf("DECIMAL:%s", v.Raw)
	case parser.ValueBool:
		return fmt.Sprintf("BOOLEAN:%t", v.Bool)
	default:
		return v.Raw
	}
}
