// Package processor is query-processor glue: it turns a parsed NSQL
// statement into a WAL record and appends it. It never touches a page
// store — there is no table, row, or index state anywhere in this
// package, only the translation from AST to (RecordType, payload, xid)
// and the two write calls (data record, commit record) that make one
// NSQL statement durable.
package processor

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"monodb/nsql"
	"monodb/nsql/parser"
	"monodb/wal"
)

// Result is what one Process call hands back to a caller (the socket
// server or the REPL): the printed AST the original_source REPL expects
// to see, and, for statements that produced a WAL write, the location it
// landed at.
type Result struct {
	AST      string
	Location *wal.Location
	Note     string
}

// Processor dispatches every NSQL statement kind. It is not safe for
// concurrent use: each TELL statement makes two BeginRecord/EndRecord pairs
// on wal.Context, whose mutex covers single calls only, so concurrent
// Process calls can interleave those pairs. server.Server serializes its
// calls into Process with a mutex.
type Processor struct {
	wal     *wal.Context
	nextXid atomic.Uint32
	log     *logrus.Entry
}

func New(w *wal.Context, log *logrus.Entry) *Processor {
	return &Processor{wal: w, log: log}
}

// Process parses and executes one statement, auto-committing any write
// it produces — NSQL has no multi-statement transaction syntax, so every
// TELL statement gets its own xid and is immediately followed by an
// XactCommit record.
func (p *Processor) Process(input string) (*Result, error) {
	stmt, err := parser.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	ast := nsql.Print(stmt)

	switch s := stmt.(type) {
	case *parser.TellAddRecordStmt:
		loc, err := p.appendCommitted(wal.RecordInsert, nsql.Canonical(s))
		return &Result{AST: ast, Location: loc}, err
	case *parser.TellAddColumnStmt:
		loc, err := p.appendCommitted(wal.RecordSchema, nsql.Canonical(s))
		return &Result{AST: ast, Location: loc}, err
	case *parser.TellUpdateStmt:
		loc, err := p.appendCommitted(wal.RecordUpdate, nsql.Canonical(s))
		return &Result{AST: ast, Location: loc}, err
	case *parser.TellRemoveStmt:
		loc, err := p.appendCommitted(wal.RecordDelete, nsql.Canonical(s))
		return &Result{AST: ast, Location: loc}, err
	case *parser.AskStmt, *parser.FindStmt, *parser.GetStmt:
		return &Result{AST: ast, Note: "not available without storage"}, nil
	case *parser.ShowStmt:
		return &Result{AST: ast, Note: "not available without storage"}, nil
	default:
		return nil, fmt.Errorf("processor: unsupported statement %T", s)
	}
}

// appendCommitted writes one data-bearing record carrying payload, then a
// matching XactCommit record for the same xid, and flushes durably. This
// is the processor's only path to wal.Context — nothing else in this
// package calls BeginRecord/EndRecord directly.
func (p *Processor) appendCommitted(typ wal.RecordType, payload string) (*wal.Location, error) {
	xid := p.nextXid.Add(1)

	slot, err := p.wal.BeginRecord(typ, xid, uint16(len(payload)))
	if err != nil {
		return nil, err
	}
	copy(slot.Bytes(), payload)
	loc, err := p.wal.EndRecord()
	if err != nil {
		return nil, err
	}

	if _, err := p.wal.BeginRecord(wal.RecordXactCommit, xid, 0); err != nil {
		return &loc, err
	}
	if _, err := p.wal.EndRecord(); err != nil {
		return &loc, err
	}
	if err := p.wal.Flush(true); err != nil {
		return &loc, err
	}

	p.log.WithFields(logrus.Fields{
		"type":     typ.String(),
		"xid":      xid,
		"location": loc.String(),
	}).Debug("[Processor] statement committed")

	return &loc, nil
}
