package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/aodb/rpc/common"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	transport := &httpServerTransport{}
	transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return bytes.ToUpper(req)
	})
	server := httptest.NewServer(transport.routes())
	t.Cleanup(server.Close)
	return server
}

func TestRoundTrip(t *testing.T) {
	server := newTestServer(t)

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			// the same server twice to exercise round robin
			Endpoints:  []string{server.URL, strings.TrimPrefix(server.URL, "http://")},
			RetryCount: 2,
		},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	for _, req := range []string{"hello", "world", ""} {
		resp, err := client.Send(42, []byte(req))
		if err != nil {
			t.Fatalf("Send(%q) failed: %v", req, err)
		}
		if want := strings.ToUpper(req); string(resp) != want {
			t.Errorf("Send(%q) = %q, want %q", req, resp, want)
		}
	}
}

func TestInvalidShard(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/not-a-number", "application/octet-stream", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	// one request so the counter is non zero
	if _, err := http.Post(server.URL+"/1", "application/octet-stream", strings.NewReader("x")); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	if !strings.Contains(string(body), `aodb_rpc_requests_total{transport="http"}`) {
		t.Errorf("metrics output misses the request counter:\n%s", body)
	}
}

func TestSendWithoutConnect(t *testing.T) {
	client := NewHttpClientTransport()
	if _, err := client.Send(1, nil); err == nil {
		t.Errorf("expected error on an unconnected transport")
	}
}
