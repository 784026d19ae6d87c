package broker_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/toitware/broker"
)

func TestGateway_Handle(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Call", mock.Anything, "toit_artemis.get_devices", json.RawMessage(`{"_fleet_id":"f"}`)).
		Return(json.RawMessage(`[{"id":"d1"}]`), nil).Once()

	gw := broker.NewGateway(broker.NewRouter(broker.DefaultSchema))
	body := broker.Envelope{Command: broker.CommandGetDevices, Payload: []byte(`{"_fleet_id":"f"}`)}.Encode()

	cmd, outcome, err := gw.Handle(context.Background(), body, backend)

	require.NoError(t, err)
	assert.Equal(t, broker.CommandGetDevices, cmd)
	assert.Equal(t, broker.DataOutcome{Data: json.RawMessage(`[{"id":"d1"}]`)}, outcome)
	backend.AssertExpectations(t)
}

func TestGateway_HandleUpload(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Upload", mock.Anything, "assets", "x/y", []byte("data"), broker.UploadOptions{Upsert: true}).
		Return(nil).Once()

	gw := broker.NewGateway(broker.NewRouter(""))
	body := broker.Envelope{
		Command: broker.CommandUpload,
		Payload: broker.UploadPayload{Path: "assets/x/y", Data: []byte("data")}.Encode(),
	}.Encode()

	cmd, outcome, err := gw.Handle(context.Background(), body, backend)

	require.NoError(t, err)
	assert.Equal(t, broker.CommandUpload, cmd)
	assert.Equal(t, broker.DataOutcome{}, outcome)
	backend.AssertExpectations(t)
}

func TestGateway_HandleEmptyBody(t *testing.T) {
	backend := new(MockBackend)

	cmd, outcome, err := broker.NewGateway(broker.NewRouter("")).Handle(context.Background(), nil, backend)

	assert.Zero(t, cmd)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, broker.ErrMalformedEnvelope)
	backend.AssertExpectations(t)
}

func TestGateway_HandleDecodeErrorSkipsBackend(t *testing.T) {
	backend := new(MockBackend)

	cmd, _, err := broker.NewGateway(broker.NewRouter("")).
		Handle(context.Background(), []byte{byte(broker.CommandReportState), '{'}, backend)

	assert.Equal(t, broker.CommandReportState, cmd)
	assert.ErrorIs(t, err, broker.ErrMalformedJSON)
	backend.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}
