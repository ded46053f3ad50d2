package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/scenecast/internal/config"
)

func TestShellJoin(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-f", "lavfi"}, "-f lavfi"},
		{[]string{"-filter_complex", "[0:v]scale=400:300[l0]"}, "-filter_complex '[0:v]scale=400:300[l0]'"},
		{[]string{"it's"}, `'it'\''s'`},
		{[]string{""}, "''"},
	}
	for _, tt := range tests {
		if got := shellJoin(tt.args); got != tt.want {
			t.Errorf("shellJoin(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func runPipeline(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	body := "[profile]\nstream_key = \"live_cli_secret\"\nrecord_path = \"" + dir + "\"\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.StreamKeyEnv, "")

	cmd := CreatePipelineCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", cfg, "--scenes", filepath.Join(dir, "scenes.toml"), "--platform", "linux"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("pipeline command: %v", err)
	}
	return out.String()
}

func TestPipelineCmdMasksKey(t *testing.T) {
	out := runPipeline(t, "--target", "stream")
	if strings.Contains(out, "live_cli_secret") {
		t.Errorf("output leaks stream key:\n%s", out)
	}
	if !strings.Contains(out, `"kind": "push"`) || !strings.Contains(out, "\nffmpeg ") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPipelineCmdShowSecrets(t *testing.T) {
	out := runPipeline(t, "--target", "stream", "--show-secrets")
	if !strings.Contains(out, "live_cli_secret") {
		t.Errorf("--show-secrets did not reveal the key:\n%s", out)
	}
}

func TestPipelineCmdRecord(t *testing.T) {
	out := runPipeline(t, "--target", "record")
	if !strings.Contains(out, `"kind": "file"`) {
		t.Errorf("record target did not build a file sink:\n%s", out)
	}
}

func TestRenderTablePlainForPipes(t *testing.T) {
	var buf bytes.Buffer
	got := renderTable(&buf, []string{"TYPE", "ID"}, [][]string{{"camera", "/dev/video0"}})
	if strings.ContainsAny(got, "╭│") {
		t.Errorf("non-terminal output uses box drawing:\n%s", got)
	}
	if !strings.Contains(got, "/dev/video0") {
		t.Errorf("row missing:\n%s", got)
	}
}
