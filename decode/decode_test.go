package decode_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/decode"
	"github.com/Contextable/ag-ui-4k-sub001/event"
)

type fixedRecords struct {
	records [][]byte
	index   int
	err     error
}

func (f *fixedRecords) Next(context.Context) ([]byte, bool, error) {
	if f.index >= len(f.records) {
		return nil, false, f.err
	}
	r := f.records[f.index]
	f.index++
	return r, true, nil
}

func TestDecodeSkipsUndecodableRecords(t *testing.T) {
	d := decode.New()
	ev, ok := d.Decode(context.Background(), []byte(`{"type":"UNKNOWN_THING"}`))
	require.False(t, ok)
	require.Nil(t, ev)

	ev, ok = d.Decode(context.Background(), []byte(`{"type":"RUN_STARTED","thread_id":"t1","run_id":"r1"}`))
	require.True(t, ok)
	require.Equal(t, event.TypeRunStarted, ev.Kind())
}

func TestEventsDropsBadRecordsButContinues(t *testing.T) {
	d := decode.New()
	records := &fixedRecords{records: [][]byte{
		[]byte(`{"type":"RUN_STARTED","thread_id":"t1","run_id":"r1"}`),
		[]byte(`not json`),
		[]byte(`{"type":"RUN_FINISHED","thread_id":"t1","run_id":"r1"}`),
	}}

	out, errc := d.Events(context.Background(), records)

	var got []event.Event
	for ev := range out {
		got = append(got, ev)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 2)
	require.Equal(t, event.TypeRunStarted, got[0].Kind())
	require.Equal(t, event.TypeRunFinished, got[1].Kind())
}

func TestEventsPropagatesTerminalError(t *testing.T) {
	d := decode.New()
	boom := errors.New("boom")
	records := &fixedRecords{records: nil, err: boom}

	out, errc := d.Events(context.Background(), records)
	for range out {
		t.Fatal("expected no events")
	}
	require.ErrorIs(t, <-errc, boom)
}
