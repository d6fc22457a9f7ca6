package server

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/ValentinKolb/dMsg/rpc/sender"
	"github.com/ValentinKolb/dMsg/rpc/serializer"
	"github.com/ValentinKolb/dMsg/rpc/transport"
	"github.com/ValentinKolb/dMsg/rpc/transport/tcp"
	"github.com/ValentinKolb/dMsg/rpc/transport/unix"
	"github.com/ValentinKolb/dMsg/rpc/transport/ws"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type transportSetup struct {
	name      string
	server    func() transport.IRPCServerTransport
	client    func() transport.IClientSocket
	endpoint  func(t *testing.T) string
	clientURL func(addr string) string
}

var transports = []transportSetup{
	{
		name:      "ws",
		server:    func() transport.IRPCServerTransport { return ws.NewWebsocketServerTransport("/dmsg") },
		client:    ws.NewWebsocketClientSocket,
		endpoint:  func(*testing.T) string { return "127.0.0.1:0" },
		clientURL: func(addr string) string { return "ws://" + addr + "/dmsg" },
	},
	{
		name:      "tcp",
		server:    tcp.NewTCPServerTransport,
		client:    tcp.NewTCPClientSocket,
		endpoint:  func(*testing.T) string { return "127.0.0.1:0" },
		clientURL: func(addr string) string { return addr },
	},
	{
		name:      "unix",
		server:    unix.NewUnixServerTransport,
		client:    unix.NewUnixClientSocket,
		endpoint:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "dmsg.sock") },
		clientURL: func(addr string) string { return addr },
	},
}

// startServer runs a server until the test ends and returns the address it listens on
func startServer(t *testing.T, setup transportSetup, config common.ServerConfig) string {
	t.Helper()

	config.Endpoint = setup.endpoint(t)
	s := NewRPCServer(config, setup.server(), serializer.NewTextFrameCodec())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Errorf("Server did not shut down")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		select {
		case err := <-done:
			t.Fatalf("Server stopped: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("Server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Addr()
}

// connect creates a started sender connected to the server at addr
func connect(t *testing.T, setup transportSetup, addr string) *sender.Sender {
	t.Helper()

	config := common.DefaultClientConfig(setup.clientURL(addr))
	config.Autostart = false

	s := sender.NewSender(config, setup.client(), serializer.NewTextFrameCodec())
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Failed to start sender: %v", err)
	}
	return s
}

func newMessage(t *testing.T, mt common.MessageType, payload any) common.Message {
	t.Helper()
	msg, err := common.NewMessage(mt, payload)
	if err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}
	return msg
}

func await(t *testing.T, f *sender.Future) common.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("Transaction %s did not resolve: %v", f.TransactionID(), err)
	}
	return msg
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestPingPong tests the ping transaction over all transports
func TestPingPong(t *testing.T) {
	for _, setup := range transports {
		t.Run(setup.name, func(t *testing.T) {
			addr := startServer(t, setup, common.ServerConfig{TimeoutSecond: 5})
			s := connect(t, setup, addr)

			ping := newMessage(t, common.MsgTPing, map[string]int{"seq": 1})
			pong := await(t, s.Transaction(ping, common.MsgTPong))

			if pong.Type != common.MsgTPong {
				t.Errorf("Expected Pong, got %s", pong.Type)
			}
			if string(pong.Payload) != `{"seq":1}` {
				t.Errorf("Expected echoed payload, got %s", pong.Payload)
			}
			if s.Pending() != 0 {
				t.Errorf("Expected no pending transactions, got %d", s.Pending())
			}
		})
	}
}

// TestCheckNpmPackage tests the package check for valid and empty names
func TestCheckNpmPackage(t *testing.T) {
	setup := transports[0]
	addr := startServer(t, setup, common.ServerConfig{})
	s := connect(t, setup, addr)

	testCases := []struct {
		name  string
		npmID string
		valid bool
	}{
		{name: "Valid name", npmID: "@acme/patterns", valid: true},
		{name: "Empty name", npmID: "", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newMessage(t, common.MsgTCheckNpmPackageRequest, common.NpmPackagePayload{NpmID: tc.npmID})
			resp := await(t, s.Transaction(req, common.MsgTCheckNpmPackageResponse))

			var result common.NpmPackageResultPayload
			if err := resp.DecodePayload(&result); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if result.NpmID != tc.npmID || result.Valid != tc.valid {
				t.Errorf("Expected %q valid=%v, got %+v", tc.npmID, tc.valid, result)
			}
		})
	}
}

// TestConnectLibrary tests that connecting a library answers and sends a project update
func TestConnectLibrary(t *testing.T) {
	setup := transports[1]
	addr := startServer(t, setup, common.ServerConfig{})
	s := connect(t, setup, addr)

	updates := make(chan common.ProjectUpdatePayload, 4)
	s.Match(common.MsgTProjectUpdate, func(msg common.Message) {
		var p common.ProjectUpdatePayload
		if err := msg.DecodePayload(&p); err != nil {
			t.Errorf("Failed to decode update: %v", err)
			return
		}
		updates <- p
	})

	var libraryID string
	for _, npmID := range []string{"lib-a", "lib-b", "lib-a"} {
		req := newMessage(t, common.MsgTConnectNpmPatternLibraryRequest, common.NpmLibraryPayload{NpmID: npmID, ProjectID: "p1"})
		resp := await(t, s.Transaction(req, common.MsgTConnectNpmPatternLibraryResponse))

		var result common.NpmLibraryResultPayload
		if err := resp.DecodePayload(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if result.Err != "" || result.LibraryID == "" {
			t.Fatalf("Expected connected library, got %+v", result)
		}
		if npmID == "lib-a" {
			if libraryID != "" && libraryID != result.LibraryID {
				t.Errorf("Expected stable library id, got %s and %s", libraryID, result.LibraryID)
			}
			libraryID = result.LibraryID
		}
	}

	var last common.ProjectUpdatePayload
	for i := 0; i < 3; i++ {
		select {
		case last = <-updates:
		case <-time.After(2 * time.Second):
			t.Fatalf("Missing project update %d", i+1)
		}
	}
	if expected := []string{"lib-a", "lib-b"}; last.ProjectID != "p1" || !reflect.DeepEqual(last.Libraries, expected) {
		t.Errorf("Expected project p1 with %v, got %+v", expected, last)
	}
}

// TestConnectLibraryRejected tests that incomplete requests are answered with an error payload
func TestConnectLibraryRejected(t *testing.T) {
	adapter := NewNpmServerAdapter()

	req := newMessage(t, common.MsgTConnectNpmPatternLibraryRequest, common.NpmLibraryPayload{NpmID: "lib-a"})
	req.Transaction = "t1"

	replies, err := adapter.Handle(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("Expected only a response, got %d messages", len(replies))
	}

	var result common.NpmLibraryResultPayload
	if err := replies[0].DecodePayload(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Err == "" || result.LibraryID != "" || replies[0].Transaction != "t1" {
		t.Errorf("Expected rejection for t1, got %+v (transaction %s)", result, replies[0].Transaction)
	}
}

// TestErrorFrames tests that undecodable requests are answered with error frames
func TestErrorFrames(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{}, tcp.NewTCPServerTransport(), serializer.NewTextFrameCodec())
	codec := serializer.NewTextFrameCodec()

	testCases := []struct {
		name  string
		frame string
	}{
		{name: "Malformed header", frame: "nope\n{}"},
		{name: "Missing body", frame: `{"status":"success","type":"Ping"}`},
		{name: "Invalid body", frame: "{\"status\":\"success\",\"type\":\"Ping\"}\n{"},
		{name: "Missing id", frame: "{\"status\":\"success\",\"type\":\"Ping\"}\n{\"type\":\"Ping\"}"},
		{name: "Type mismatch", frame: "{\"status\":\"success\",\"type\":\"Ping\"}\n{\"id\":\"x\",\"type\":\"Log\"}"},
		{name: "Unsupported type", frame: "{\"status\":\"success\",\"type\":\"Pong\"}\n{\"id\":\"x\",\"type\":\"Pong\"}"},
		{name: "Invalid log payload", frame: "{\"status\":\"success\",\"type\":\"Log\"}\n{\"id\":\"x\",\"type\":\"Log\"}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var replies [][]byte
			s.handle([]byte(tc.frame), func(frame []byte) error {
				replies = append(replies, frame)
				return nil
			})

			if len(replies) != 1 {
				t.Fatalf("Expected one error frame, got %d", len(replies))
			}
			header, err := codec.DecodeHeader(replies[0])
			if err != nil {
				t.Fatalf("Failed to decode reply header: %v", err)
			}
			if header.Status != serializer.StatusError {
				t.Errorf("Expected error status, got %s", header.Status)
			}
			if diagnostic, ok := codec.DecodeBody(replies[0]); !ok || diagnostic == "" {
				t.Errorf("Expected a diagnostic in the error frame")
			}
		})
	}
}

// TestHandleWithoutReply tests that log messages and client error frames are not answered
func TestHandleWithoutReply(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{}, tcp.NewTCPServerTransport(), serializer.NewTextFrameCodec())
	codec := serializer.NewTextFrameCodec()

	logMsg := newMessage(t, common.MsgTLog, common.LogPayload{Level: "warn", Message: "hello"})
	env, err := codec.Encode(logMsg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	frames := []string{
		string(env),
		string(codec.EncodeError(common.MsgTPing, "client failure")),
	}
	for _, frame := range frames {
		s.handle([]byte(frame), func(frame []byte) error {
			t.Errorf("Unexpected reply %q", frame)
			return nil
		})
	}
}

// TestConcurrentSenders tests that replies reach the connection that sent the request
func TestConcurrentSenders(t *testing.T) {
	setup := transports[0]
	addr := startServer(t, setup, common.ServerConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		s := connect(t, setup, addr)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ping, err := common.NewMessage(common.MsgTPing, map[string]string{"from": fmt.Sprintf("%d-%d", i, j)})
				if err != nil {
					t.Errorf("Failed to create message: %v", err)
					return
				}

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				pong, err := s.Transaction(ping, common.MsgTPong).Wait(ctx)
				cancel()
				if err != nil {
					t.Errorf("Transaction did not resolve: %v", err)
					return
				}
				if string(pong.Payload) != string(ping.Payload) {
					t.Errorf("Expected payload %s, got %s", ping.Payload, pong.Payload)
				}
			}
		}(i)
	}
	wg.Wait()
}

// TestRateLimit tests that a rate limited connection still answers every request
func TestRateLimit(t *testing.T) {
	setup := transports[1]
	addr := startServer(t, setup, common.ServerConfig{RateLimit: 100, RateBurst: 1})
	s := connect(t, setup, addr)

	start := time.Now()
	futures := make([]*sender.Future, 5)
	for i := range futures {
		futures[i] = s.Transaction(newMessage(t, common.MsgTPing, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))), common.MsgTPong)
	}
	for _, f := range futures {
		await(t, f)
	}

	// burst 1 at 100/s spaces the last request at least 40ms after the first
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Expected rate limiting to delay processing, took %s", elapsed)
	}
}
