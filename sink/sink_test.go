package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lislink/link"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()

	recs, err := ReadRecords(path)
	require.NoError(t, err)

	return recs
}

func TestFileSink_Offload(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "messages.jsonl")
	s, err := OpenFile(path, WithSync(true))
	require.NoError(err)

	ctx := context.Background()
	astmMsg := testMessage("cobas-1", link.ProtocolASTM, "H|\\^&\rL|1|N\r", 0)
	hl7Msg := testMessage("mindray-1", link.ProtocolHL7, "MSH|^~\\&|A|B\r", time.Second)
	hl7Msg.ControlID = "123"

	require.NoError(s.Offload(ctx, "cobas-1", astmMsg))
	require.NoError(s.Offload(ctx, "mindray-1", hl7Msg, testMessage("mindray-1", link.ProtocolHL7, "MSH|x\r", 0)))
	require.NoError(s.Offload(ctx, "mindray-1"))
	require.NoError(s.Close())

	recs := readRecords(t, path)
	require.Len(recs, 3)

	require.Equal(astmMsg.ID, recs[0].ID)
	require.Equal("cobas-1", recs[0].InstrumentID)
	require.Equal("astm", recs[0].Protocol)
	require.Equal(astmMsg.Text, recs[0].Text)
	require.True(baseTime.Equal(recs[0].ReceivedAt))

	require.Equal("hl7", recs[1].Protocol)
	require.Equal("123", recs[1].ControlID)
	require.Equal(recs[1].BatchID, recs[2].BatchID)
	require.NotEqual(recs[0].BatchID, recs[1].BatchID)
}

func TestFileSink_Closed(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "messages.jsonl"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Offload(context.Background(), "a", testMessage("a", link.ProtocolASTM, "x", 0))
	require.ErrorIs(t, err, link.ErrOffload)
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")

	for i := 0; i < 2; i++ {
		s, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, s.Offload(context.Background(), "a", testMessage("a", link.ProtocolASTM, "x", 0)))
		require.NoError(t, s.Close())
	}

	require.Len(t, readRecords(t, path), 2)
}

func TestFileSink_OpenError(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing", "messages.jsonl"))
	require.Error(t, err)
}

func TestFileSink_CanceledContext(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "messages.jsonl"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Offload(ctx, "a", testMessage("a", link.ProtocolASTM, "x", 0))
	require.ErrorIs(t, err, link.ErrOffload)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemorySink(t *testing.T) {
	require := require.New(t)

	s := NewMemorySink()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Offload(ctx, "a", testMessage("a", link.ProtocolASTM, "x", 0))
			}
		}()
	}
	wg.Wait()

	require.NoError(s.Offload(ctx, "b", testMessage("b", link.ProtocolHL7, "y", 0)))
	require.Len(s.Messages("a"), 80)
	require.Len(s.Messages("b"), 1)
	require.Nil(s.Messages("c"))
	require.Equal(81, s.Len())

	down := errors.New("database down")
	s.SetFailure(down)
	err := s.Offload(ctx, "b", testMessage("b", link.ProtocolHL7, "z", 0))
	require.ErrorIs(err, link.ErrOffload)
	require.ErrorIs(err, down)
	require.Len(s.Messages("b"), 1)

	s.SetFailure(nil)
	require.NoError(s.Offload(ctx, "b", testMessage("b", link.ProtocolHL7, "z", 0)))
	require.Len(s.Messages("b"), 2)
}

func TestReadRecords_Errors(t *testing.T) {
	_, err := ReadRecords(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"a\"}\n{broken\n"), 0o600))

	recs, err := ReadRecords(path)
	require.Error(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "a", recs[0].ID)
}
