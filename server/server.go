// Package server exposes processor.Processor over the plain-text TCP
// protocol original_source/repl speaks: statements terminated by ';' or
// the standalone word PLEASE, one goroutine per connection, responses are
// the printed AST. It is stream-oriented glue only — it never touches a
// page store.
package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"monodb/processor"
)

// DefaultAddr matches original_source's SERVER_ADDR:SERVER_PORT.
const DefaultAddr = "127.0.0.1:5433"

// Server accepts connections and feeds each one's buffered statements to
// a single shared Processor under a mutex — the WAL underneath is
// single-writer, so there is no value in processing two statements at
// once, only in accepting many connections concurrently.
type Server struct {
	addr string
	proc *processor.Processor
	log  *logrus.Entry

	mu  sync.Mutex // serializes calls into proc
	ln  net.Listener
}

func New(addr string, proc *processor.Processor, log *logrus.Entry) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, proc: proc, log: log}
}

// ListenAndServe blocks accepting connections until the listener is
// closed (via Close, or the caller canceling through some other means).
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.WithField("addr", s.addr).Info("[Server] listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// handleConn buffers incoming text until a statement terminator (';' or
// the standalone word PLEASE) is seen, then dispatches it, matching
// original_source/repl/src/main.cpp's line-accumulation loop.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	addr := conn.RemoteAddr().String()
	s.log.WithField("remote", addr).Info("[Server] connection opened")

	reader := bufio.NewReader(conn)
	var buf strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			break
		}

		if stmt, ok := extractStatement(&buf); ok {
			s.dispatch(conn, stmt)
		}
	}

	s.log.WithField("remote", addr).Info("[Server] connection closed")
}

// extractStatement reports whether buf now holds a complete statement —
// terminated by ';' or the standalone word PLEASE — and if so drains buf
// and returns the statement text with the terminator stripped.
func extractStatement(buf *strings.Builder) (string, bool) {
	raw := buf.String()
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
	words := strings.Fields(text)
	please := len(words) > 0 && strings.EqualFold(words[len(words)-1], "PLEASE")
	if !strings.Contains(raw, ";") && !please {
		return "", false
	}
	buf.Reset()
	if please {
		text = strings.TrimSuffix(text, words[len(words)-1])
	}
	return strings.TrimSpace(text), true
}

func (s *Server) dispatch(conn net.Conn, stmt string) {
	if stmt == "" {
		return
	}

	s.mu.Lock()
	result, err := s.proc.Process(stmt)
	s.mu.Unlock()

	if err != nil {
		fmt.Fprintf(conn, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(conn, "NSQL Parsing Results:\n%s", result.AST)
	if result.Location != nil {
		fmt.Fprintf(conn, "  Location: %s\n", result.Location.String())
	}
	if result.Note != "" {
		fmt.Fprintf(conn, "  Note: %s\n", result.Note)
	}
}
