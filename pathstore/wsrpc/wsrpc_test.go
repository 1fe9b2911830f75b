package wsrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
	"github.com/wbrown/janus-pathstore/pathstore/protocol"
)

const sensorModel pathstore.ModelKey = 1

const (
	propLabel   pathstore.PropertyKey = 1
	propReading pathstore.PropertyKey = 2
	cmdZero     pathstore.PropertyKey = 10
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sensorRegistry(t *testing.T) *pathstore.Registry {
	t.Helper()
	r, err := pathstore.NewRegistry(pathstore.ModelDef{
		ID:   sensorModel,
		Name: "sensor",
		Properties: []pathstore.PropertySpec{
			{ID: propLabel, Name: "label"},
			{ID: propReading, Name: "reading"},
		},
		Commands: map[pathstore.PropertyKey]pathstore.CommandFunc{
			cmdZero: func(s pathstore.Store, instance pathstore.InstanceKey, args map[pathstore.PropertyKey][]byte) error {
				return pathstore.Set(s, pathstore.NewPath(sensorModel, instance, propReading), 0.0)
			},
		},
	})
	require.NoError(t, err)
	return r
}

// startServer serves a producer over a real listener and returns a
// connected client. Cleanup closes the client before the listener.
func startServer(t *testing.T, remote protocol.ProducerStore, registry *pathstore.Registry, settings *Settings) *Client {
	t.Helper()
	p := protocol.NewProducer(remote, registry, codec.JSON{})
	srv := httptest.NewServer(NewServer(p, settings, quietLogger()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url, settings)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientServerSync(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 1, 100))
	require.NoError(t, pathstore.SetAt(remote, pathstore.NewPath(sensorModel, 1, propLabel), "boiler", 110))
	require.NoError(t, pathstore.SetAt(remote, pathstore.NewPath(sensorModel, 1, propReading), 21.5, 120))
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 2, 150))
	require.NoError(t, pathstore.SetAt(remote, pathstore.NewPath(sensorModel, 2, propLabel), "intake", 160))

	client := startServer(t, remote, sensorRegistry(t), nil)

	local := pathstore.NewHistoryStore(codec.JSON{})
	consumer := protocol.NewConsumer(local, sensorRegistry(t), codec.JSON{}, client)

	statuses, err := consumer.PullInstanceStatuses(context.Background(), sensorModel, 0)
	require.NoError(t, err)
	assert.Equal(t, []protocol.StatusUpdate{
		{Instance: 1, Status: pathstore.StatusCreated, Date: 100},
		{Instance: 2, Status: pathstore.StatusCreated, Date: 150},
	}, statuses)

	applied, err := consumer.PullModelUpdates(context.Background(), sensorModel, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	label, ok := pathstore.Get[string](local, pathstore.NewPath(sensorModel, 1, propLabel))
	require.True(t, ok)
	assert.Equal(t, "boiler", label)
	reading, ok := pathstore.Get[float64](local, pathstore.NewPath(sensorModel, 1, propReading))
	require.True(t, ok)
	assert.Equal(t, 21.5, reading)

	// write dates travel with the values
	at, ok := pathstore.GetAt[string](local, pathstore.NewPath(sensorModel, 1, propLabel), 115)
	require.True(t, ok)
	assert.Equal(t, "boiler", at.Value)
	assert.Equal(t, pathstore.Timestamp(110), at.Date)
}

func TestCallThroughWire(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 1, 100))
	require.NoError(t, pathstore.SetAt(remote, pathstore.NewPath(sensorModel, 1, propReading), 21.5, 120))

	client := startServer(t, remote, sensorRegistry(t), nil)

	local := pathstore.NewHistoryStore(codec.JSON{})
	consumer := protocol.NewConsumer(local, sensorRegistry(t), codec.JSON{}, client)

	err := consumer.Call(context.Background(), pathstore.NewPath(sensorModel, 1, cmdZero), nil)
	require.NoError(t, err)

	remoteReading, ok := pathstore.Get[float64](remote, pathstore.NewPath(sensorModel, 1, propReading))
	require.True(t, ok)
	assert.Equal(t, 0.0, remoteReading, "command ran on the remote store")

	localReading, ok := pathstore.Get[float64](local, pathstore.NewPath(sensorModel, 1, propReading))
	require.True(t, ok)
	assert.Equal(t, 0.0, localReading, "command effects merged locally")
}

func TestRemoteErrorCrossesWire(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	client := startServer(t, remote, sensorRegistry(t), nil)

	local := pathstore.NewHistoryStore(codec.JSON{})
	consumer := protocol.NewConsumer(local, sensorRegistry(t), codec.JSON{}, client)

	_, err := consumer.PullInstanceUpdate(context.Background(), sensorModel, 42, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.Error{Kind: protocol.ErrMissingInstance}))
}

func TestPingLeavesRequestsUndisturbed(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 1, 100))

	client := startServer(t, remote, nil, nil)

	require.NoError(t, client.Ping())
	require.NoError(t, client.Ping())

	env, err := protocol.Encode(codec.JSON{}, protocol.InstanceStatusRequest{Model: sensorModel})
	require.NoError(t, err)
	reply, err := client.RoundTrip(context.Background(), env)
	require.NoError(t, err)
	resp, err := protocol.Decode[protocol.InstancesResponse](codec.JSON{}, reply)
	require.NoError(t, err)
	assert.Len(t, resp.Updates, 1)
}

func TestKeepaliveLoop(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 1, 100))

	settings := DefaultSettings()
	settings.PingTimeout = 10 * time.Millisecond
	client := startServer(t, remote, nil, settings)

	// several keepalive frames pass; the request path is unaffected
	time.Sleep(50 * time.Millisecond)

	env, err := protocol.Encode(codec.JSON{}, protocol.InstanceStatusRequest{Model: sensorModel})
	require.NoError(t, err)
	reply, err := client.RoundTrip(context.Background(), env)
	require.NoError(t, err)
	_, err = protocol.Decode[protocol.InstancesResponse](codec.JSON{}, reply)
	assert.NoError(t, err)
}

func TestGarbageGetsErrorEnvelope(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	client := startServer(t, remote, nil, nil)

	reply, err := client.RoundTrip(context.Background(), []byte{0xEE, 1, 2, 3})
	require.NoError(t, err, "transport succeeds; the failure is in the payload")
	require.Equal(t, protocol.KindError, protocol.PeekKind(reply))
	remoteErr, err := protocol.Decode[protocol.Error](codec.JSON{}, reply)
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrInvalidEnvelope, remoteErr.Kind)
}

func TestConcurrentRoundTrips(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	require.NoError(t, pathstore.CreateInstanceAt(remote, sensorModel, 1, 100))

	client := startServer(t, remote, nil, nil)

	env, err := protocol.Encode(codec.JSON{}, protocol.InstanceStatusRequest{Model: sensorModel})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				reply, err := client.RoundTrip(context.Background(), env)
				if !assert.NoError(t, err) {
					return
				}
				resp, err := protocol.Decode[protocol.InstancesResponse](codec.JSON{}, reply)
				if !assert.NoError(t, err) {
					return
				}
				assert.Len(t, resp.Updates, 1)
			}
		}()
	}
	wg.Wait()
}

func TestRoundTripCancelledContext(t *testing.T) {
	remote := pathstore.NewHistoryStore(codec.JSON{})
	client := startServer(t, remote, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env, err := protocol.Encode(codec.JSON{}, protocol.InstanceStatusRequest{Model: sensorModel})
	require.NoError(t, err)
	_, err = client.RoundTrip(ctx, env)
	assert.ErrorIs(t, err, context.Canceled)
}
