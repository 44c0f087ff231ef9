package unix

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aodb/rpc/common"
	"github.com/ValentinKolb/aodb/rpc/transport"
)

// startEchoServer serves a handler that prefixes every request with its shard id
func startEchoServer(t *testing.T) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "aodb.sock")
	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 4},
		})
	}()
	t.Cleanup(func() {
		server.Close()
		if err := <-done; err != nil {
			t.Errorf("Listen returned error after close: %v", err)
		}
	})

	// wait for the socket file
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			return socket
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func connect(t *testing.T, socket string, conns int) transport.IRPCClientTransport {
	t.Helper()
	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             2,
			ConnectionsPerEndpoint: conns,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSendReceive(t *testing.T) {
	socket := startEchoServer(t)
	client := connect(t, socket, 1)

	tests := map[string]struct {
		shard uint64
		req   []byte
		want  []byte
	}{
		"simple":  {shard: 1, req: []byte("hello"), want: []byte("1:hello")},
		"empty":   {shard: 7, req: []byte{}, want: []byte("7:")},
		"large":   {shard: 2, req: bytes.Repeat([]byte("x"), 1<<20), want: append([]byte("2:"), bytes.Repeat([]byte("x"), 1<<20)...)},
		"big id":  {shard: 1 << 63, req: []byte("a"), want: []byte(fmt.Sprintf("%d:a", uint64(1<<63)))},
		"binary":  {shard: 3, req: []byte{0, 1, 2, 255}, want: []byte{'3', ':', 0, 1, 2, 255}},
		"newline": {shard: 4, req: []byte("a\nb"), want: []byte("4:a\nb")},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := client.Send(tc.shard, tc.req)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got %d bytes, want %d bytes", len(got), len(tc.want))
			}
		})
	}
}

func TestConcurrentRequests(t *testing.T) {
	socket := startEchoServer(t)
	client := connect(t, socket, 3)

	const workers = 16
	const requests = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < requests; i++ {
				req := []byte(fmt.Sprintf("req-%d-%d", w, i))
				resp, err := client.Send(uint64(w), req)
				if err != nil {
					errs <- err
					return
				}
				if want := fmt.Sprintf("%d:%s", w, req); string(resp) != want {
					errs <- fmt.Errorf("got %q, want %q", resp, want)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestConnectFailure(t *testing.T) {
	client := NewUnixClientTransport()
	err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints: []string{filepath.Join(t.TempDir(), "missing.sock")},
		},
	})
	if err == nil {
		client.Close()
		t.Fatalf("expected error connecting to a missing socket")
	}

	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("expected error without endpoints")
	}
}

func TestSendAfterClose(t *testing.T) {
	socket := startEchoServer(t)

	client := NewUnixClientTransport()
	if err := client.Connect(common.ClientConfig{
		TimeoutSecond: 1,
		Transport:     common.ClientTransportConfig{Endpoints: []string{socket}},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	client.Close()

	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Errorf("expected error sending on a closed transport")
	}
}
