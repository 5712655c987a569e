package quic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orrerysim/orrery/internal/core/protocol"
)

func testConfig() protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.WorkerCount = 4
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 5 * time.Second
	return cfg
}

func echoHandler(_ context.Context, req *protocol.Request) *protocol.Response {
	switch req.Cmd {
	case protocol.CmdPing:
		return protocol.Success(protocol.PingResult{Response: "pong broker"})
	default:
		return protocol.InvalidCommand(req.Cmd)
	}
}

func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()

	cfg := testConfig()
	srv := NewServer(cfg, echoHandler, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })

	client, err := Dial(context.Background(), srv.Addr().String(), cfg, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return srv, client
}

func TestServerPing(t *testing.T) {
	_, client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := protocol.NewRequest(protocol.CmdPing, struct{}{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer protocol.ReleaseRequest(req)

	resp, err := client.Roundtrip(ctx, req)
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	defer protocol.ReleaseResponse(resp)

	if !resp.OK {
		t.Fatalf("ping refused: %s", resp.Msg)
	}
	var result protocol.PingResult
	if err := resp.Bind(&result); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if result.Response != "pong broker" {
		t.Errorf("response = %q", result.Response)
	}
}

func TestServerUnknownCommand(t *testing.T) {
	_, client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := protocol.NewRequest("blub", struct{}{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer protocol.ReleaseRequest(req)

	resp, err := client.Roundtrip(ctx, req)
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	defer protocol.ReleaseResponse(resp)

	if resp.OK {
		t.Fatal("unknown command must be refused")
	}
	if resp.Msg != "Invalid command <blub>" {
		t.Errorf("msg = %q", resp.Msg)
	}
}

func TestServerConcurrentRoundtrips(t *testing.T) {
	_, client := startServer(t)

	const clients = 16
	const perClient = 8

	var wg sync.WaitGroup
	errs := make(chan error, clients*perClient)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perClient; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				req, err := protocol.NewRequest(protocol.CmdPing, struct{}{})
				if err != nil {
					cancel()
					errs <- err
					return
				}
				resp, err := client.Roundtrip(ctx, req)
				protocol.ReleaseRequest(req)
				cancel()
				if err != nil {
					errs <- err
					return
				}
				if !resp.OK {
					errs <- protocol.ErrInvalidMessage
				}
				protocol.ReleaseResponse(resp)
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("roundtrip: %v", err)
	}
}

func TestServerDoubleStart(t *testing.T) {
	srv, _ := startServer(t)

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
	if !srv.Running() {
		t.Error("server should still be running")
	}
}

func TestServerStop(t *testing.T) {
	srv, client := startServer(t)

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if srv.Running() {
		t.Error("server still reports running")
	}
	// Stop twice is a no-op.
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := protocol.NewRequest(protocol.CmdPing, struct{}{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer protocol.ReleaseRequest(req)

	if _, err := client.Roundtrip(ctx, req); err == nil {
		t.Error("roundtrip against a stopped server should fail")
	}
}

func TestClientClosed(t *testing.T) {
	_, client := startServer(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.Closed() {
		t.Error("client should report closed")
	}

	req, err := protocol.NewRequest(protocol.CmdPing, struct{}{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	defer protocol.ReleaseRequest(req)

	if _, err := client.Roundtrip(context.Background(), req); err != protocol.ErrConnectionClosed {
		t.Errorf("err = %v, want %v", err, protocol.ErrConnectionClosed)
	}
}
