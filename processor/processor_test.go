package processor

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"monodb/wal"
)

func testProcessor(t *testing.T) *Processor {
	t.Helper()
	dir := t.TempDir()
	w, err := wal.Init(wal.Config{Dir: dir, SegmentSize: 4096})
	require.NoError(t, err)
	t.Cleanup(func() { w.Shutdown() })
	log := logrus.NewEntry(logrus.New())
	return New(w, log)
}

func TestProcessTellAddRecordWritesCommittedRecord(t *testing.T) {
	p := testProcessor(t)

	result, err := p.Process("TELL users TO ADD RECORD WITH id = 1, name = 'John Doe'")
	require.NoError(t, err)
	require.NotNil(t, result.Location)
	require.Contains(t, result.AST, "TELL QUERY")
	require.Contains(t, result.AST, "Fields:")

	typ, xid, payload, err := p.wal.ReadRecord(*result.Location)
	require.NoError(t, err)
	require.Equal(t, wal.RecordInsert, typ)
	require.NotZero(t, xid)
	require.Equal(t, "TELL users TO ADD RECORD WITH id = 1, name = 'John Doe'", string(payload))

	var applied int
	stats, err := p.wal.Recover(wal.ZeroLocation, map[wal.RecordType]wal.Handler{
		wal.RecordInsert: func(wal.Header, []byte) bool { applied++; return true },
	})
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	require.Equal(t, 1, stats.CommittedTransactions)
}

func TestProcessReadOnlyVerbsReturnNote(t *testing.T) {
	p := testProcessor(t)

	result, err := p.Process("ASK users WHERE id = 1")
	require.NoError(t, err)
	require.Nil(t, result.Location)
	require.Equal(t, "not available without storage", result.Note)
	require.Contains(t, result.AST, "ASK QUERY")
}

func TestProcessInvalidStatementReturnsError(t *testing.T) {
	p := testProcessor(t)
	_, err := p.Process("GARBAGE")
	require.Error(t, err)
}
