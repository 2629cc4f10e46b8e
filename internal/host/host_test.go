package host

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overlayd/internal/autospin"
	"overlayd/internal/ipc"
	"overlayd/internal/queue"
	"overlayd/internal/resolver"
	"overlayd/pkg/types"
)

// idleWorker never reports ready; it only exits when stopped.
type idleWorker struct {
	once sync.Once
	done chan struct{}
}

func newIdleWorker() *idleWorker { return &idleWorker{done: make(chan struct{})} }

func (w *idleWorker) PID() int               { return 1 }
func (w *idleWorker) Send(ipc.Message) error { return nil }
func (w *idleWorker) Recv() (ipc.Message, error) {
	<-w.done
	return ipc.Message{}, io.EOF
}
func (w *idleWorker) Wait() error { <-w.done; return nil }
func (w *idleWorker) Stop()       { w.once.Do(func() { close(w.done) }) }

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const options = `{"options":[
 {"name":"Whiterun","application":"skyrim","controller":"mod-file-writer","config":{"cell":"Whiterun"},"enabled":true,"command":"coc Whiterun"},
 {"name":"Note","application":"notepad","controller":"writer","enabled":false},
 {"name":"Nothing","enabled":false}
]}`

func newHost(t *testing.T) (*Host, string) {
	t.Helper()
	base := t.TempDir()
	write(t, filepath.Join(base, "applications", "skyrim", "config", "wheel-options.json"), options)
	write(t, filepath.Join(base, "applications", "skyrim", "config", "settings.json"), `{"commandFile":"cmds.txt"}`)
	write(t, filepath.Join(base, "applications", "notepad", "config", "settings.json"), `{"file":"notes.txt"}`)
	write(t, filepath.Join(base, "controllers", "mod-file-writer", "executor.lua"), "function handle() end\n")

	res, err := resolver.New(base)
	require.NoError(t, err)
	mgr := queue.New(queue.Config{Spawner: queue.SpawnerFunc(func(string) (queue.Worker, error) {
		return newIdleWorker(), nil
	})})
	h := New(Config{Resolver: res, Manager: mgr})
	t.Cleanup(h.Close)
	return h, base
}

func TestLoadProfile_SeedsQueues(t *testing.T) {
	h, _ := newHost(t)
	assert.False(t, h.Ready())
	assert.Empty(t, h.Options().Options)

	require.NoError(t, h.LoadProfile("skyrim"))
	assert.True(t, h.Ready())
	assert.Equal(t, "skyrim", h.Options().Application)
	assert.Len(t, h.Options().Options, 3)
	assert.Equal(t, map[string]int{"skyrim-mod-file-writer": 0, "notepad-writer": 0}, h.Queues().Stats)
	assert.Equal(t, []string{"notepad", "skyrim"}, h.Applications())
}

func TestLoadProfile_Unknown(t *testing.T) {
	h, _ := newHost(t)
	assert.Error(t, h.LoadProfile("morrowind"))
	assert.False(t, h.Ready())
}

func TestApplicationConfigs_IncludeReferencedApplications(t *testing.T) {
	h, _ := newHost(t)
	require.NoError(t, h.LoadProfile("skyrim"))
	h.mu.RLock()
	p := h.profile
	h.mu.RUnlock()
	cfg := h.applicationConfigs(p)
	assert.Equal(t, map[string]any{"commandFile": "cmds.txt"}, cfg["skyrim"])
	assert.Equal(t, map[string]any{"file": "notes.txt"}, cfg["notepad"])
}

func TestSubmitResult_ByName(t *testing.T) {
	h, _ := newHost(t)
	require.NoError(t, h.LoadProfile("skyrim"))

	resp, err := h.SubmitResult(types.ResultRequest{Name: "Whiterun"})
	require.NoError(t, err)
	assert.Equal(t, "skyrim-mod-file-writer", resp.Destination)
	assert.Equal(t, "coc Whiterun", resp.Item.Command)
	assert.Equal(t, "Whiterun", resp.Item.Config["cell"])
	assert.NotEmpty(t, resp.Item.ID)

	resp, err = h.SubmitResult(types.ResultRequest{Name: "Whiterun", Config: map[string]any{"cell": "Riverwood"}})
	require.NoError(t, err)
	assert.Equal(t, "Riverwood", resp.Item.Config["cell"])
	assert.Equal(t, 2, h.Queues().Stats["skyrim-mod-file-writer"])
}

func TestSubmitResult_Explicit(t *testing.T) {
	h, _ := newHost(t)
	resp, err := h.SubmitResult(types.ResultRequest{Application: "notepad", Controller: "Mod-File-Writer", Command: "tgm"})
	require.NoError(t, err)
	assert.Equal(t, "notepad-Mod-File-Writer", resp.Destination)
	assert.Equal(t, "tgm", resp.Item.Result)
	assert.Equal(t, 1, h.Queues().Stats["notepad-Mod-File-Writer"])
}

func TestSubmitResult_ExplicitMustResolve(t *testing.T) {
	h, base := newHost(t)
	// An executor outside every search root must stay unreachable.
	write(t, filepath.Join(base, "elsewhere", "executor.lua"), "function handle() end\n")
	require.NoError(t, h.LoadProfile("skyrim"))

	for _, req := range []types.ResultRequest{
		{Application: "skyrim", Controller: "console"},
		{Application: "skyrim", Controller: "../elsewhere"},
		{Application: "skyrim", Controller: "../../" + filepath.Base(base) + "/elsewhere"},
		{Application: "fallout", Controller: "mod-file-writer"},
		{Application: "../applications/skyrim", Controller: "mod-file-writer"},
	} {
		_, err := h.SubmitResult(req)
		var se statusError
		require.True(t, errors.As(err, &se), "%+v: %v", req, err)
		assert.Equal(t, http.StatusNotFound, se.StatusCode(), "%+v", req)
	}
	assert.Empty(t, h.Queues().Workers, "rejected results must not spawn workers")
	assert.Equal(t, map[string]int{"skyrim-mod-file-writer": 0, "notepad-writer": 0}, h.Queues().Stats)
}

func TestSubmitResult_Errors(t *testing.T) {
	h, _ := newHost(t)

	_, err := h.SubmitResult(types.ResultRequest{Name: "Whiterun"})
	var se statusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode())

	require.NoError(t, h.LoadProfile("skyrim"))
	_, err = h.SubmitResult(types.ResultRequest{Name: "Nope"})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode())

	_, err = h.SubmitResult(types.ResultRequest{Name: "Nothing"})
	assert.True(t, queue.IsBadOption(err))

	_, err = h.SubmitResult(types.ResultRequest{Application: "skyrim"})
	assert.True(t, queue.IsBadOption(err))
}

func TestSpin(t *testing.T) {
	h, _ := newHost(t)
	_, err := h.Spin()
	assert.ErrorIs(t, err, autospin.ErrNoOptions)

	require.NoError(t, h.LoadProfile("skyrim"))
	resp, err := h.Spin()
	require.NoError(t, err)
	assert.Equal(t, "Whiterun", resp.Item.Result)
}

func TestStartAutoSpin(t *testing.T) {
	h, _ := newHost(t)
	assert.NoError(t, h.StartAutoSpin(""))
	assert.Error(t, h.StartAutoSpin("whenever"))
	assert.NoError(t, h.StartAutoSpin("@every 1h"))
}

func TestMissingControllers(t *testing.T) {
	h, _ := newHost(t)
	assert.Nil(t, h.MissingControllers())
	require.NoError(t, h.LoadProfile("skyrim"))
	assert.Equal(t, []string{"writer"}, h.MissingControllers())
}

func TestPluginsAndResolve(t *testing.T) {
	h, base := newHost(t)
	p := h.Plugins()
	assert.True(t, p.ScanEnabled)
	assert.Empty(t, p.Controllers)

	dir, ok := h.Resolve(types.RoleController, "Mod-File-Writer")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "controllers", "mod-file-writer"), dir)
}
