package sink

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/layerscan/internal/scan"
)

func TestUDPJSONForwardsEnvelopes(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	f, err := NewUDPJSON("127.0.0.1", port, time.Minute)
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)

	rec := &scan.ScanRecord{Layer: scan.Layer3, Ranges: []float32{1.5, 2.5}}
	rec.FrameID = "laser"
	require.NoError(t, f.PublishScan("scan_layer_3", rec))

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64*1024)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	var env struct {
		Channel string `json:"channel"`
		Kind    string `json:"kind"`
		Record  struct {
			FrameID string    `json:"frame_id"`
			Layer   int       `json:"layer"`
			Ranges  []float32 `json:"ranges"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(buf[:n], &env))
	assert.Equal(t, "scan_layer_3", env.Channel)
	assert.Equal(t, "scan", env.Kind)
	assert.Equal(t, "laser", env.Record.FrameID)
	assert.Equal(t, int(scan.Layer3), env.Record.Layer)
	assert.Equal(t, []float32{1.5, 2.5}, env.Record.Ranges)
}

func TestUDPJSONDropsWhenQueueFull(t *testing.T) {
	f, err := NewUDPJSON("127.0.0.1", 9, time.Minute)
	require.NoError(t, err)
	defer f.Close()

	// Never started: the queue fills and further publishes drop.
	for i := 0; i < 300; i++ {
		require.NoError(t, f.PublishCloud("cloud", &scan.CloudRecord{}))
	}
	assert.Positive(t, f.Dropped())
}

func TestUDPJSONBadAddress(t *testing.T) {
	_, err := NewUDPJSON("not a host name", 2370, 0)
	assert.Error(t, err)
}
