package transport_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Contextable/ag-ui-4k-sub001/transport"
)

func TestExponentialBackoffRetriesConnectAndTimeout(t *testing.T) {
	p := transport.NewExponentialBackoff()
	for _, kind := range []transport.ErrorKind{transport.ErrorConnect, transport.ErrorTimeout} {
		err := &transport.Error{Kind: kind}
		require.True(t, p.ShouldRetry(err, 1))
	}
}

func TestExponentialBackoffRetriesServerErrorsOnly(t *testing.T) {
	p := transport.NewExponentialBackoff()
	require.True(t, p.ShouldRetry(&transport.Error{Kind: transport.ErrorHTTP, Status: 503}, 1))
	require.False(t, p.ShouldRetry(&transport.Error{Kind: transport.ErrorHTTP, Status: 404}, 1))
}

func TestExponentialBackoffNeverRetriesDecodeErrors(t *testing.T) {
	p := transport.NewExponentialBackoff()
	require.False(t, p.ShouldRetry(&transport.Error{Kind: transport.ErrorDecode}, 1))
}

func TestExponentialBackoffStopsAtMaxAttempts(t *testing.T) {
	p := transport.NewExponentialBackoff()
	err := &transport.Error{Kind: transport.ErrorConnect}
	require.False(t, p.ShouldRetry(err, p.MaxAttempts()))
}

func TestExponentialBackoffIgnoresNonTransportErrors(t *testing.T) {
	p := transport.NewExponentialBackoff()
	require.False(t, p.ShouldRetry(errors.New("plain error"), 1))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &transport.Error{Kind: transport.ErrorConnect, Cause: cause}
	require.ErrorIs(t, err, cause)
}
