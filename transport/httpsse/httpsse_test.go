package httpsse_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/event"
	"github.com/Contextable/ag-ui-4k-sub001/transport"
	"github.com/Contextable/ag-ui-4k-sub001/transport/httpsse"
)

func sseServer(t *testing.T, records []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, rec := range records {
			fmt.Fprintf(w, "data: %s\n\n", rec)
			flusher.Flush()
		}
	}))
}

func drain(t *testing.T, sess interface {
	Events() <-chan event.Event
	Errors() <-chan error
}) []event.Event {
	t.Helper()
	var got []event.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestStartRunStreamsDecodedEvents(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"RUN_STARTED","thread_id":"t1","run_id":"r1"}`,
		`{"type":"TEXT_MESSAGE_START","message_id":"m1"}`,
		`{"type":"TEXT_MESSAGE_CONTENT","message_id":"m1","delta":"hi"}`,
		`{"type":"TEXT_MESSAGE_END","message_id":"m1"}`,
		`{"type":"RUN_FINISHED","thread_id":"t1","run_id":"r1"}`,
	})
	defer server.Close()

	client := httpsse.NewClient(server.URL)
	sess, err := client.StartRun(t.Context(), event.RunInput{ThreadID: "t1", RunID: "r1"}, nil)
	require.NoError(t, err)
	defer sess.Close()

	events := drain(t, sess)
	require.Len(t, events, 5)
	require.Equal(t, event.TypeRunStarted, events[0].Kind())
	require.Equal(t, event.TypeRunFinished, events[4].Kind())
}

func TestStartRunSkipsUndecodableRecords(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"RUN_STARTED","thread_id":"t1","run_id":"r1"}`,
		`not json at all`,
		`{"type":"RUN_FINISHED","thread_id":"t1","run_id":"r1"}`,
	})
	defer server.Close()

	client := httpsse.NewClient(server.URL)
	sess, err := client.StartRun(t.Context(), event.RunInput{}, nil)
	require.NoError(t, err)
	defer sess.Close()

	events := drain(t, sess)
	require.Len(t, events, 2)
}

func TestStartRunNonSuccessStatusFailsWithTransportHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	client := httpsse.NewClient(server.URL)
	_, err := client.StartRun(t.Context(), event.RunInput{}, nil)
	require.Error(t, err)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, transport.ErrorHTTP, terr.Kind)
	require.Equal(t, http.StatusBadRequest, terr.Status)
}

func TestStartRunSendsExpectedHeaders(t *testing.T) {
	var gotContentType, gotAccept, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer server.Close()

	client := httpsse.NewClient(server.URL)
	sess, err := client.StartRun(t.Context(), event.RunInput{}, map[string]string{"Authorization": "Bearer abc"})
	require.NoError(t, err)
	defer sess.Close()

	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "text/event-stream", gotAccept)
	require.Equal(t, "Bearer abc", gotAuth)
}
