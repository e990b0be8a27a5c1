package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"monodb/processor"
	"monodb/wal"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	w, err := wal.Init(wal.Config{Dir: dir, SegmentSize: 4096})
	require.NoError(t, err)
	t.Cleanup(func() { w.Shutdown() })

	log := logrus.NewEntry(logrus.New())
	proc := processor.New(w, log)
	srv := New("127.0.0.1:0", proc, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.ln = ln
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(conn)
		}
	}()
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String()
}

func TestServerHandlesSemicolonTerminatedStatement(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("TELL users TO ADD RECORD WITH id = 1;\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "NSQL Parsing Results:")
}

func TestServerHandlesPleaseTerminator(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("SHOW TABLES PLEASE\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "NSQL Parsing Results:")
}

func TestExtractStatementRecognizesBothTerminators(t *testing.T) {
	var buf strings.Builder
	buf.WriteString("ASK users WHERE id = 1;")
	stmt, ok := extractStatement(&buf)
	require.True(t, ok)
	require.Equal(t, "ASK users WHERE id = 1", stmt)

	buf.WriteString("SHOW TABLES PLEASE")
	stmt, ok = extractStatement(&buf)
	require.True(t, ok)
	require.Equal(t, "SHOW TABLES", stmt)
}
