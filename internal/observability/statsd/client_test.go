package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, conn.LocalAddr().String()
}

func readLine(t *testing.T, conn *net.UDPConn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestClient_Count(t *testing.T) {
	conn, addr := listenUDP(t)
	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "tiwed.auth"})
	require.NoError(t, err)
	defer client.Close()

	client.Count("login.success", 1, map[string]string{"method": "POST", "status": "200"})
	assert.Equal(t, "tiwed.auth.login.success:1|c|#method:POST,status:200", readLine(t, conn))
}

func TestClient_Timing(t *testing.T) {
	conn, addr := listenUDP(t)
	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer client.Close()

	client.Timing("request.duration", 1500*time.Millisecond, nil)
	assert.Equal(t, "request.duration:1500|ms", readLine(t, conn))
}

func TestClient_DisabledIsNoop(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:1"})
	require.NoError(t, err)

	// Must not panic or dial anything.
	client.Count("ignored", 1, nil)
	client.Timing("ignored", time.Second, nil)
	require.NoError(t, client.Close())
}

func TestClient_CloseStopsEmission(t *testing.T) {
	conn, addr := listenUDP(t)
	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client.Count("after.close", 1, nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 64)
	_, _, err = conn.ReadFromUDP(buf)
	assert.Error(t, err, "no packet expected after close")
}
