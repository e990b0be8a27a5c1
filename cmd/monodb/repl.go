package monodb

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"monodb/internal/config"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Connect to a running monodb server and send NSQL statements",
	Long: `repl is a TCP client for monodb's NSQL socket protocol: it reads
lines with history and editing, buffers them until a statement
terminator (';' or the standalone word PLEASE), sends the statement, and
prints whatever the server writes back.`,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	addr := serverAddr
	if addr == "" {
		addr = config.DefaultAddr
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("repl: connect %s: %w", addr, err)
	}
	defer conn.Close()

	rl, err := readline.New("nsql> ")
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	go relayResponses(rl.Stdout(), conn)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(strings.TrimSpace(line))

		text := buf.String()
		words := strings.Fields(strings.TrimSuffix(text, ";"))
		please := len(words) > 0 && strings.EqualFold(words[len(words)-1], "PLEASE")
		if strings.Contains(text, ";") || please {
			fmt.Fprintln(conn, text)
			buf.Reset()
		}
	}
}

// relayResponses reads the server's replies line by line and reformats
// any "Fields:" block — the tabular part of a TELL ADD RECORD/UPDATE
// response — as a table, matching original_source/repl's
// display_response distinguishing tabular output from plain text
// without porting its ANSI color logic.
func relayResponses(w io.Writer, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "Fields:" {
			printFieldsTable(w, scanner)
			continue
		}
		fmt.Fprintln(w, line)
	}
}

// printFieldsTable consumes consecutive "    column = value" lines
// following a "Fields:" header and renders them as a two-column table.
func printFieldsTable(w io.Writer, scanner *bufio.Scanner) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	var after *string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.HasPrefix(line, "    ") {
			after = &line
			break
		}
		col, val, ok := strings.Cut(trimmed, " = ")
		if !ok {
			table.Append([]string{trimmed, ""})
			continue
		}
		table.Append([]string{col, val})
	}
	table.Render()
	if after != nil {
		fmt.Fprintln(w, *after)
	}
}
