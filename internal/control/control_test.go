package control

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupServer(t *testing.T) (*Server, *Client) {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "control.sock")
	srv := NewServer(socket)
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	client, err := NewClient(socket)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return srv, client
}

func TestCallRoundTrip(t *testing.T) {
	srv, client := setupServer(t)

	srv.Handle("echo", func(params json.RawMessage) (any, error) {
		var in map[string]string
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return in, nil
	})

	resp, err := client.Call("echo", map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected handler error: %s", resp.Error)
	}

	data, _ := json.Marshal(resp.Data)
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out["hello"] != "world" {
		t.Errorf("unexpected echo: %v", out)
	}
}

func TestHandlerError(t *testing.T) {
	srv, client := setupServer(t)

	srv.Handle("boom", func(params json.RawMessage) (any, error) {
		return nil, errors.New("it broke")
	})

	resp, err := client.Call("boom", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Error != "it broke" {
		t.Errorf("expected handler error, got '%s'", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, client := setupServer(t)

	resp, err := client.Call("no_such_method", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected unknown-method error")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	srv, client := setupServer(t)

	// Give the connection a moment to register before broadcasting.
	time.Sleep(50 * time.Millisecond)

	srv.Broadcast(Event{Type: "thread-renamed", Payload: map[string]string{"thread_id": "t1", "name": "New Name"}})

	select {
	case evt := <-client.Events():
		if evt.Type != "thread-renamed" {
			t.Errorf("unexpected event type '%s'", evt.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "control.sock")
	srv := NewServer(socket)
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// A forced shutdown can re-enter Stop after a graceful stop already ran.
	if err := srv.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
