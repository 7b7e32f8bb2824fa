package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lineupkit/tacticboard/internal/config"
	"github.com/lineupkit/tacticboard/internal/storage/tacticfile"
	"github.com/lineupkit/tacticboard/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a config dir whose logs and tactics live under t.TempDir.
type testEnv struct {
	dir       string
	tactics   string
	configDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	env := testEnv{
		dir:       dir,
		tactics:   filepath.Join(dir, "tactics"),
		configDir: filepath.Join(dir, "cfg"),
	}
	require.NoError(t, os.MkdirAll(env.configDir, 0755))
	cfg := `{
		"logLevel": "debug",
		"logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
		"playback": { "tickInterval": "5ms" },
		"storage": {
			"type": "memory",
			"memory": { "outputDir": "` + filepath.ToSlash(env.tactics) + `", "compressOutput": false }
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, config.FileName), []byte(cfg), 0644))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{AppName, "--config", e.configDir}, args...))
	return out.String(), err
}

func sampleTactic(durations ...int) core.Tactic {
	stamp := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	t := core.Tactic{ID: "7a0c6a6e-0000-4000-8000-000000000001", Name: "High press", CreatedAt: stamp, UpdatedAt: stamp}
	for i, d := range durations {
		ball := core.NewBallPosition(0.5, 0.5, true)
		t.Frames = append(t.Frames, core.TacticFrame{
			ID:    core.NewID(),
			Index: i,
			PlayerPositions: map[int]core.FramePosition{
				1: core.NewFramePosition(1, 0.2+0.1*float64(i), 0.5),
				2: core.NewFramePosition(2, 0.6, 0.3),
			},
			Ball:       &ball,
			Strokes:    []core.DrawingStroke{},
			DurationMs: d,
		})
	}
	return t
}

func writeTactic(t *testing.T, dir, name string, tac core.Tactic) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, tacticfile.WriteFile(path, tac))
	return path
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	path := writeTactic(t, env.dir, "press.json", sampleTactic(1000, 2500))

	out, err := env.run(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name:     High press")
	assert.Contains(t, out, "frames:   2")
	assert.Contains(t, out, "duration: 3.5s")
	assert.Contains(t, out, "2500ms")
}

func TestInfo_MissingArgument(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "info")
	assert.ErrorContains(t, err, "expected 1 argument")
}

func TestConvert_JSONToYAML(t *testing.T) {
	env := newTestEnv(t)
	in := writeTactic(t, env.dir, "press.json", sampleTactic(1000, 1000))
	out := filepath.Join(env.dir, "press.yaml")

	_, err := env.run(t, "convert", "--in", in, "--out", out)
	require.NoError(t, err)

	got, err := tacticfile.ReadFile(out)
	require.NoError(t, err)
	want, err := tacticfile.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	good := writeTactic(t, env.dir, "good.json", sampleTactic(1000, 1000))
	bad := sampleTactic(1000, 50)
	badPath := writeTactic(t, env.dir, "bad.json.gz", bad)

	out, err := env.run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good)

	out, err = env.run(t, "validate", "--limit", "2", good, badPath)
	assert.ErrorContains(t, err, "1 of 2 file(s) failed validation")
	assert.Contains(t, out, "FAIL "+badPath)
	assert.Contains(t, out, "duration 50ms out of range")
}

func TestPlay(t *testing.T) {
	env := newTestEnv(t)
	path := writeTactic(t, env.dir, "press.json", sampleTactic(100, 100, 100))

	out, err := env.run(t, "play", "--speed", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "frame 1/3")
	assert.Contains(t, out, "frame 2/3")
	assert.Contains(t, out, "stopped at frame")
}

func TestPlay_SingleFrame(t *testing.T) {
	env := newTestEnv(t)
	path := writeTactic(t, env.dir, "one.json", sampleTactic(1000))

	_, err := env.run(t, "play", path)
	assert.ErrorContains(t, err, "at least two frames")
}

func TestRunScript_SaveListExportDelete(t *testing.T) {
	env := newTestEnv(t)
	script := filepath.Join(env.dir, "build.board")
	require.NoError(t, os.WriteFile(script, []byte(strings.Join([]string{
		"# two-frame counter attack",
		`:TACTIC:NEW: "Counter attack" [[1,0.2,0.5],[2,0.4,0.5]]`,
		":FRAME:ADD:",
		":PLAYER:MOVE: 1 0.6 0.5",
		":BALL:MOVE: 0.6 0.5",
		":FRAME:ADD:",
		":FRAME:SELECT: 1",
		":STROKE:ADD: arrow #ffcc00 3 [[0.2,0.5],[0.6,0.5]]",
		":FRAME:DURATION: 1 1500",
		":STATE:",
	}, "\n")), 0644))

	out, err := env.run(t, "run", "--save", script)
	require.NoError(t, err)
	assert.Contains(t, out, ":FRAME:ADD: true")
	assert.Contains(t, out, `"name":"Counter attack"`)
	assert.Contains(t, out, `"frames":2`)

	out, err = env.run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	assert.Contains(t, lines[1], "Counter attack")
	id := strings.Fields(lines[1])[0]

	exported := filepath.Join(env.dir, "counter.yaml")
	_, err = env.run(t, "export", id, exported)
	require.NoError(t, err)
	tac, err := tacticfile.ReadFile(exported)
	require.NoError(t, err)
	require.Len(t, tac.Frames, 2)
	assert.Equal(t, 1500, tac.Frames[1].DurationMs)
	require.Len(t, tac.Frames[1].Strokes, 1)
	assert.Equal(t, core.ToolArrow, tac.Frames[1].Strokes[0].Tool)
	assert.Equal(t, 0.6, tac.Frames[1].PlayerPositions[1].X)

	_, err = env.run(t, "delete", id)
	require.NoError(t, err)
	_, err = env.run(t, "export", id, exported)
	assert.ErrorContains(t, err, "not found")
}

func TestRunScript_StopsOnError(t *testing.T) {
	env := newTestEnv(t)
	script := filepath.Join(env.dir, "broken.board")
	require.NoError(t, os.WriteFile(script, []byte(":FRAME:ADD:\n:FRAME:TELEPORT: 3\n:FRAME:ADD:\n"), 0644))

	out, err := env.run(t, "run", script)
	assert.ErrorContains(t, err, "line 2")
	assert.ErrorContains(t, err, "unknown command")
	assert.Equal(t, 1, strings.Count(out, ":FRAME:ADD: true"))

	out, err = env.run(t, "run", "--keep-going", script)
	assert.Error(t, err)
	assert.Equal(t, 2, strings.Count(out, ":FRAME:ADD: true"))
}

func TestSave_RejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	path := writeTactic(t, env.dir, "bad.json", sampleTactic(20000))

	_, err := env.run(t, "save", path)
	assert.ErrorContains(t, err, "refusing to store invalid tactic")
}

func TestSave_ThenList(t *testing.T) {
	env := newTestEnv(t)
	path := writeTactic(t, env.dir, "press.json", sampleTactic(1000, 1000))

	out, err := env.run(t, "save", path)
	require.NoError(t, err)
	assert.Equal(t, "7a0c6a6e-0000-4000-8000-000000000001\n", lastLine(out))

	_, err = os.Stat(filepath.Join(env.tactics, "7a0c6a6e-0000-4000-8000-000000000001.json"))
	assert.NoError(t, err)
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "-", formatResult(nil))
	assert.Equal(t, "true", formatResult(true))
	assert.Equal(t, "queued", formatResult("queued"))
	assert.Equal(t, `{"a":1}`, formatResult(map[string]int{"a": 1}))
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	return s[strings.LastIndex(s, "\n")+1:] + "\n"
}
