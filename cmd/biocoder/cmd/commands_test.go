package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/biocoder/pkg/api"
	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/config"
	"github.com/ssargent/biocoder/pkg/di"
	"github.com/ssargent/biocoder/pkg/storage"
)

const testInput = `[{"kind":"luminance","value":10},{"kind":"motion_vector","x":1,"y":-1}]
[{"kind":"luminance","value":10},{"kind":"motion_vector","x":1,"y":-1}]
[{"kind":"luminance","value":12},{"kind":"chrominance","value":-3}]
`

type testEnv struct {
	dir        string
	configPath string
	dataDir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvDataDir, "")
	dir := t.TempDir()
	SetContainer(di.NewContainer())
	return &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		dataDir:    filepath.Join(dir, "data"),
	}
}

// run executes the root command. Flags keep their values between runs, so
// every call passes the flags it relies on.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", e.configPath, "--data-dir", e.dataDir, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "init", "--print-key", "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created")
	assert.Contains(t, out, "API key:")

	cfg, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.Len(t, cfg.Security.APIKey, 64)
	assert.DirExists(t, env.dataDir)

	out, err = env.run(t, "", "init", "--print-key=false", "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	again, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Security.APIKey, again.Security.APIKey)
}

func TestEncodeDecodeCommands(t *testing.T) {
	env := newTestEnv(t)
	logPath := filepath.Join(env.dir, "cam.units")
	outPath := filepath.Join(env.dir, "out.jsonl")

	out, err := env.run(t, testInput, "encode", "--in", "-", "--log", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Encoded 3 frames")

	out, err = env.run(t, testInput, "encode", "--in", "", "--log", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "log holds 6 units")

	_, err = env.run(t, "", "decode", "--log", logPath, "--out", outPath, "--from", "0", "--best-effort=false")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	frames, err := readFrames(bytes.NewReader(data))
	require.NoError(t, err)
	want, err := readFrames(strings.NewReader(testInput + testInput))
	require.NoError(t, err)
	assert.Equal(t, canonicalFrames(t, coder.DefaultConfig(), want), frames)

	out, err = env.run(t, "", "decode", "--log", logPath, "--out", "-", "--from", "5", "--best-effort=false")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, `"chrominance"`)

	out, err = env.run(t, "", "inspect", "--log", logPath, "--decode")
	require.NoError(t, err)
	assert.Contains(t, out, "Units: 6")
	assert.Contains(t, out, "BITS/SYMBOL")
	assert.Contains(t, out, "Context frames: 6")
	assert.Contains(t, out, "motion_vector")
}

func TestEncodeCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	logPath := filepath.Join(env.dir, "cam.units")

	_, err := env.run(t, "", "encode", "--in", filepath.Join(env.dir, "missing.jsonl"), "--log", logPath)
	assert.Error(t, err)

	_, err = env.run(t, `[{"kind":"luminance"}]`, "encode", "--in", "-", "--log", logPath)
	assert.Error(t, err)
}

func TestStoreCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "store", "create", "camera-1")
	require.NoError(t, err)
	require.Contains(t, out, "Created stream ")
	id := strings.Fields(strings.TrimPrefix(out, "Created stream "))[0]

	out, err = env.run(t, testInput, "store", "put", id, "--in", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Appended 3 frames")

	_, err = env.run(t, testInput, "store", "put", id, "--in", "-")
	require.NoError(t, err)

	out, err = env.run(t, "", "store", "get", id, "--from", "3", "--out", "-")
	require.NoError(t, err)
	frames, err := readFrames(strings.NewReader(out))
	require.NoError(t, err)
	want, err := readFrames(strings.NewReader(testInput))
	require.NoError(t, err)
	assert.Equal(t, canonicalFrames(t, coder.DefaultConfig(), want), frames)

	out, err = env.run(t, "", "store", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "camera-1")

	_, err = env.run(t, "", "store", "delete", id)
	require.NoError(t, err)

	_, err = env.run(t, "", "store", "get", id, "--from", "0", "--out", "-")
	assert.ErrorIs(t, err, storage.ErrStreamNotFound)

	_, err = env.run(t, "", "store", "get", "not-a-ksuid", "--from", "0", "--out", "-")
	assert.Error(t, err)
}

type recordingStarter struct {
	config  api.ServerConfig
	streams *storage.StreamCoder
}

func (s *recordingStarter) StartServer(ctx context.Context, streams *storage.StreamCoder, config api.ServerConfig) error {
	s.streams = streams
	s.config = config
	return nil
}

type recordingFactory struct {
	starter *recordingStarter
}

func (f *recordingFactory) CreateServerStarter() api.ServerStarter {
	return f.starter
}

func TestServeCommand(t *testing.T) {
	env := newTestEnv(t)
	starter := &recordingStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&recordingFactory{starter: starter})
	SetContainer(c)

	out, err := env.run(t, "", "serve", "--port", "9090", "--bind", "0.0.0.0", "--api-key", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated API key for this run")
	assert.Contains(t, out, "0.0.0.0:9090")

	assert.NotNil(t, starter.streams)
	assert.Equal(t, 9090, starter.config.Port)
	assert.Equal(t, "0.0.0.0", starter.config.Bind)
	assert.Len(t, starter.config.APIKey, 64)
	assert.Equal(t, 1<<20, starter.config.MaxFrameSymbols)
	assert.NotNil(t, starter.config.Logger)

	_, err = env.run(t, "", "serve", "--port", "9090", "--bind", "0.0.0.0", "--api-key", "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", starter.config.APIKey)
}
