package hostapi

import (
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

type fakeBackend struct {
	mkdtempPath string
	metaKey     string
	metaValue   json.RawMessage
	logged      []string
}

func (f *fakeBackend) Arguments() ArgumentsResponse {
	return ArgumentsResponse{Options: json.RawMessage(`{"x":1}`), Inputs: map[string]string{}, Tree: "/build"}
}
func (f *fakeBackend) Mkdtemp(prefix string) (string, error) { return f.mkdtempPath, nil }
func (f *fakeBackend) SourcePath(sourceType, hash string) (string, error) {
	return "/sources/" + sourceType + "/" + hash, nil
}
func (f *fakeBackend) RecordMetadata(key string, value json.RawMessage) {
	f.metaKey, f.metaValue = key, value
}
func (f *fakeBackend) Log(level, message string) { f.logged = append(f.logged, level+":"+message) }
func (f *fakeBackend) Exception(message, trace string) {}

func TestServerArgumentsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "hostapi.sock")
	backend := &fakeBackend{mkdtempPath: "/scratch/abc"}

	srv := New(sock, backend)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := writeFrame(conn, Envelope{Kind: KindArguments}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	resp, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if resp.Kind != KindArguments {
		t.Fatalf("response kind = %q, want %q", resp.Kind, KindArguments)
	}

	var args ArgumentsResponse
	if err := json.Unmarshal(resp.Payload, &args); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if args.Tree != "/build" {
		t.Errorf("Tree = %q, want /build", args.Tree)
	}
}

func TestServerUnknownKindReturnsError(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "hostapi.sock")
	srv := New(sock, &fakeBackend{})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := writeFrame(conn, Envelope{Kind: "bogus.kind"}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	resp, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if resp.Kind != "bogus.kind.error" {
		t.Fatalf("response kind = %q, want bogus.kind.error", resp.Kind)
	}

	// Connection must remain usable after an error response.
	if err := writeFrame(conn, Envelope{Kind: KindArguments}); err != nil {
		t.Fatalf("writeFrame after error: %v", err)
	}
	resp2, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame after error: %v", err)
	}
	if resp2.Kind != KindArguments {
		t.Errorf("response kind after error = %q, want %q", resp2.Kind, KindArguments)
	}
}

func TestServerMetadataRecorded(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "hostapi.sock")
	backend := &fakeBackend{}
	srv := New(sock, backend)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.DialTimeout("unix", sock, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(MetadataRequest{Key: "rpm.nevra", Value: json.RawMessage(`"bash-5.2-1"`)})
	if err := writeFrame(conn, Envelope{Kind: KindMetadata, Payload: payload}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if _, err := readFrame(conn); err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if backend.metaKey != "rpm.nevra" {
		t.Errorf("metaKey = %q, want rpm.nevra", backend.metaKey)
	}
}
