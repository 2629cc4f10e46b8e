package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/host"
	"overlayd/internal/httpapi"
	"overlayd/internal/ipc"
	"overlayd/internal/queue"
	"overlayd/internal/resolver"
	"overlayd/internal/worker"
)

const commandWriter = `
function handle(item, config)
  local target = config.commandFile or "overlay-commands.txt"
  if item.command ~= nil and item.command ~= "" then
    overlay.append_line(target, item.command)
  else
    overlay.append_line(target, "# " .. item.result)
  end
end
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// createOverlayTree lays out a skyrim profile whose options target a
// mod-file-writer controller that appends commands to commandFile.
func createOverlayTree(t *testing.T, options string) (base, commandFile string) {
	t.Helper()
	base = t.TempDir()
	commandFile = filepath.Join(t.TempDir(), "skyrim-commands.txt")
	writeFile(t, filepath.Join(base, "applications", "skyrim", "config", "wheel-options.json"), options)
	writeFile(t, filepath.Join(base, "applications", "skyrim", "config", "settings.json"), `{"commandFile":`+quote(commandFile)+`}`)
	writeFile(t, filepath.Join(base, "controllers", "mod-file-writer", "executor.lua"), commandWriter)
	return base, commandFile
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// pipeWorker runs worker.Run in-process over io.Pipe pairs.
type pipeWorker struct {
	pid    int
	conn   *ipc.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *pipeWorker) PID() int                   { return w.pid }
func (w *pipeWorker) Send(m ipc.Message) error   { return w.conn.Send(m) }
func (w *pipeWorker) Recv() (ipc.Message, error) { return w.conn.Recv() }
func (w *pipeWorker) Wait() error                { <-w.done; return nil }
func (w *pipeWorker) Stop()                      { w.cancel() }

// pipeSpawner starts in-process workers backed by real Lua executors.
type pipeSpawner struct {
	res    *resolver.Resolver
	nextID atomic.Int64
}

func (s *pipeSpawner) Spawn(dest string) (queue.Worker, error) {
	hostR, workerW := io.Pipe()
	workerR, hostW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	w := &pipeWorker{
		pid:    int(1000 + s.nextID.Add(1)),
		conn:   ipc.NewConn(hostR, hostW),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	wconn := ipc.NewConn(workerR, workerW)
	execs := worker.NewLuaExecutors(s.res, zerolog.Nop())
	go func() {
		defer close(w.done)
		_ = worker.Run(ctx, wconn, worker.Options{Destination: dest, Executors: execs})
		_ = execs.Close()
		_ = wconn.Close()
	}()
	return w, nil
}

type stack struct {
	srv  *httptest.Server
	host *host.Host
	mgr  *queue.Manager
}

func newStack(t *testing.T, base string) *stack {
	t.Helper()
	res, err := resolver.New(base)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	mgr := queue.New(queue.Config{Spawner: &pipeSpawner{res: res}})
	h := host.New(host.Config{Resolver: res, Manager: mgr})
	srv := httptest.NewServer(httpapi.NewMux(h))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return &stack{srv: srv, host: h, mgr: mgr}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// waitForFile polls until path holds want or the deadline passes.
func waitForFile(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		got, _ = os.ReadFile(path)
		if string(got) == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s: got %q, want %q", filepath.Base(path), string(got), want)
}
