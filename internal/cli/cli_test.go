package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipctl/shipctl/internal/archive"
	"github.com/shipctl/shipctl/internal/config"
	"github.com/shipctl/shipctl/internal/engine"
	"github.com/shipctl/shipctl/internal/logging"
	"github.com/shipctl/shipctl/internal/pipeline"
	"github.com/shipctl/shipctl/internal/targets"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&Options{LogLevel: logging.LevelInfo}, logging.Discard())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	settings := filepath.Join(t.TempDir(), "config.yaml")
	cmd.SetArgs(append([]string{"--settings", settings}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SHIPCTL_PROJECT_DIR", "SHIPCTL_LOG_LEVEL", "SHIPCTL_TARGET", "SHIPCTL_PACKAGE_MANAGER",
		"SHIPCTL_INSTALL_COMMAND", "SHIPCTL_ARTIFACT_DIR", "SHIPCTL_STAGING_DIR", "SHIPCTL_TOKEN",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("GITHUB_OUTPUT", "")
}

// htmlProject creates a project with an html frontend and the given targets.
func htmlProject(t *testing.T, targetsJSON string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ManifestFileName),
		`{"type":"shipctl-project","frontend":{"language":"html"},"configs":`+targetsJSON+`}`)
	writeFile(t, filepath.Join(dir, "frontend", "index.html"), "<html></html>")
	return dir
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "shipctl dev "), out)
}

func TestInitAndTargets(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	_, _, err := runCLI(t, "-C", dir, "init", "--frontend", "react", "--contracts", "sCrypt")
	require.NoError(t, err)

	_, _, err = runCLI(t, "-C", dir, "init")
	require.Error(t, err, "init must not overwrite an existing manifest")

	_, _, err = runCLI(t, "-C", dir, "targets", "add", "--name", "testnet", "--network", "testnet",
		"--project-id", "p1", "--endpoint", "https://api.example", "--deploy", "backend,frontend")
	require.NoError(t, err)
	_, _, err = runCLI(t, "-C", dir, "targets", "add", "--name", "legacy", "--provider", "other")
	require.NoError(t, err)
	_, _, err = runCLI(t, "-C", dir, "targets", "add", "--name", "testnet")
	require.Error(t, err)
	_, _, err = runCLI(t, "-C", dir, "targets", "add", "--name", "bad", "--deploy", "database")
	require.ErrorIs(t, err, config.ErrManifestInvalid)

	m, err := config.NewStore(dir, nil).Load()
	require.NoError(t, err)
	require.Len(t, m.Targets, 2)
	assert.Equal(t, config.FrontendReact, m.FrontendLanguage())
	assert.Equal(t, []config.Subsystem{config.SubsystemBackend, config.SubsystemFrontend}, m.Targets[0].Deploy)

	out, _, err := runCLI(t, "-C", dir, "targets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "testnet")
	assert.Contains(t, out, "legacy")
	assert.Contains(t, out, "no")
}

func TestBuildCommand(t *testing.T) {
	isolateEnv(t)
	dir := htmlProject(t, `[{"name":"web","provider":"shipctl","deploy":["frontend"]}]`)
	ghOut := filepath.Join(t.TempDir(), "gh-output")
	t.Setenv("GITHUB_OUTPUT", ghOut)

	out, _, err := runCLI(t, "-C", dir, "build", "--staging-dir", filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(dir, config.DefaultArtifactDir), filepath.Dir(path))
	entries, err := archive.Entries(path)
	require.NoError(t, err)
	assert.Contains(t, entries, "frontend/index.html")

	data, err := os.ReadFile(ghOut)
	require.NoError(t, err)
	assert.Contains(t, string(data), "artifact="+path+"\n")
	assert.Contains(t, string(data), "target=web\n")
}

func TestBuildArtifactDirFromEnv(t *testing.T) {
	isolateEnv(t)
	dir := htmlProject(t, `[{"name":"web","provider":"shipctl","deploy":["frontend"]}]`)
	artifacts := filepath.Join(t.TempDir(), "out")
	t.Setenv("SHIPCTL_ARTIFACT_DIR", artifacts)
	t.Setenv("SHIPCTL_TARGET", "web")

	out, _, err := runCLI(t, "-C", dir, "build")
	require.NoError(t, err)
	assert.Equal(t, artifacts, filepath.Dir(strings.TrimSpace(out)))

	flagDir := filepath.Join(t.TempDir(), "flag")
	out, _, err = runCLI(t, "-C", dir, "build", "--artifact-dir", flagDir)
	require.NoError(t, err)
	assert.Equal(t, flagDir, filepath.Dir(strings.TrimSpace(out)))
}

func TestBuildFailureNamesStage(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.ManifestFileName),
		`{"type":"shipctl-project","contracts":{"language":"sCrypt"},"configs":[{"name":"c","provider":"shipctl","deploy":["backend"]}]}`)
	writeFile(t, filepath.Join(dir, "backend", "package.json"), `{"scripts":{"build":"tsc"}}`)

	_, _, err := runCLI(t, "-C", dir, "build")
	require.ErrorIs(t, err, engine.ErrMissingCompileStep)
	assert.Equal(t, pipeline.StageBuild, pipeline.FailedStage(err))
	assert.True(t, strings.HasPrefix(err.Error(), "build: "), err.Error())

	arts, err := archive.List(filepath.Join(dir, config.DefaultArtifactDir))
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestBuildNeedsTargetWhenAmbiguous(t *testing.T) {
	isolateEnv(t)
	dir := htmlProject(t, `[{"name":"a","provider":"shipctl"},{"name":"b","provider":"shipctl"}]`)

	_, _, err := runCLI(t, "-C", dir, "build")
	require.ErrorIs(t, err, targets.ErrTargetRequired)

	_, _, err = runCLI(t, "-C", dir, "build", "1")
	require.NoError(t, err)
}

func TestArtifactsCommands(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	artDir := filepath.Join(dir, config.DefaultArtifactDir)
	for _, ms := range []int64{1_700_000_000_000, 1_700_000_000_500, 1_700_000_001_000} {
		writeFile(t, filepath.Join(artDir, archive.FileName(time.UnixMilli(ms))), "x")
	}

	out, _, err := runCLI(t, "-C", dir, "artifacts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "deployment-1700000000000.tar.gz")
	assert.Contains(t, out, "1 B")

	out, _, err = runCLI(t, "-C", dir, "artifacts", "latest")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(artDir, "deployment-1700000001000.tar.gz"), strings.TrimSpace(out))

	_, _, err = runCLI(t, "-C", dir, "artifacts", "prune", "--keep", "1")
	require.NoError(t, err)
	left, err := archive.List(artDir)
	require.NoError(t, err)
	require.Len(t, left, 1)

	_, _, err = runCLI(t, "-C", t.TempDir(), "artifacts", "latest")
	require.ErrorIs(t, err, archive.ErrNoArtifacts)
}

type controlPlane struct {
	mu       sync.Mutex
	uploaded []byte
	auth     string
}

func (c *controlPlane) handler(t *testing.T, base func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/p1/deployments", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.auth = r.Header.Get("Authorization")
		c.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"uploadURL": base() + "/upload/dep-1", "deploymentID": "dep-1"})
	})
	mux.HandleFunc("PUT /upload/dep-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/gzip", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.uploaded = body
		c.mu.Unlock()
	})
	mux.HandleFunc("GET /v1/projects/p1/deployments/dep-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "dep-1", "status": "queued"})
	})
	return mux
}

func TestDeployBuildsAndUploads(t *testing.T) {
	isolateEnv(t)
	cp := &controlPlane{}
	var srv *httptest.Server
	srv = httptest.NewServer(cp.handler(t, func() string { return srv.URL }))
	defer srv.Close()

	dir := htmlProject(t, `[{"name":"web","provider":"shipctl","projectId":"p1","endpoint":"`+srv.URL+`","deploy":["frontend"]}]`)
	t.Setenv("SHIPCTL_TOKEN", "tok")

	out, _, err := runCLI(t, "-C", dir, "deploy", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "dep-1")
	assert.Contains(t, out, "queued")

	latest, err := archive.Latest(filepath.Join(dir, config.DefaultArtifactDir))
	require.NoError(t, err)
	want, err := os.ReadFile(latest.Path)
	require.NoError(t, err)

	cp.mu.Lock()
	defer cp.mu.Unlock()
	assert.Equal(t, want, cp.uploaded)
	assert.Equal(t, "Bearer tok", cp.auth)
}

func TestDeployRejectsIneligibleTarget(t *testing.T) {
	isolateEnv(t)
	dir := htmlProject(t, `[{"name":"other","provider":"elsewhere","projectId":"p1","endpoint":"https://api.example","deploy":["frontend"]},`+
		`{"name":"local","provider":"shipctl","deploy":["frontend"]}]`)

	_, _, err := runCLI(t, "-C", dir, "deploy", "other")
	require.ErrorIs(t, err, targets.ErrTargetIneligible)

	_, _, err = runCLI(t, "-C", dir, "deploy", "local")
	require.ErrorIs(t, err, targets.ErrRemoteNotConfigured)

	arts, err := archive.List(filepath.Join(dir, config.DefaultArtifactDir))
	require.NoError(t, err)
	assert.Empty(t, arts, "nothing is built for a target that cannot be deployed")
}

func TestFirstSet(t *testing.T) {
	assert.Equal(t, "flag", firstSet(true, "flag", "env", "settings"))
	assert.Equal(t, "", firstSet(true, "", "env"))
	assert.Equal(t, "env", firstSet(false, "flag", " env ", "settings"))
	assert.Equal(t, "settings", firstSet(false, "flag", "", "settings"))
	assert.Equal(t, "", firstSet(false, "flag"))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KiB", humanSize(1536))
	assert.Equal(t, "2.0 MiB", humanSize(2<<20))
}

func TestDoctor(t *testing.T) {
	isolateEnv(t)
	bin := t.TempDir()
	writeFile(t, filepath.Join(bin, "npm"), "#!/bin/sh\nexit 0\n")
	require.NoError(t, os.Chmod(filepath.Join(bin, "npm"), 0o755))
	t.Setenv("PATH", bin)

	dir := htmlProject(t, `[{"name":"web","provider":"shipctl","deploy":["frontend"]}]`)
	out, _, err := runCLI(t, "-C", dir, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "1 target(s) ready to build")

	broken := htmlProject(t, `[{"name":"api","provider":"shipctl","deploy":["backend"]}]`)
	_, _, err = runCLI(t, "-C", broken, "doctor")
	require.ErrorIs(t, err, engine.ErrBackendMissing)

	_, _, err = runCLI(t, "-C", dir, "doctor", "--package-manager", "pnpm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pnpm not found in PATH")
}

func TestBuildResolvesRelativeDirsAgainstProject(t *testing.T) {
	isolateEnv(t)
	dir := htmlProject(t, `[{"name":"web","provider":"shipctl","deploy":["frontend"]}]`)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, _, err := runCLI(t, "-C", dir, "build", "--staging-dir", ".stage", "--artifact-dir", "dist")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist"), filepath.Dir(strings.TrimSpace(out)))

	entries, err := os.ReadDir(filepath.Join(dir, ".stage"))
	require.NoError(t, err, "staging root must be created under the project")
	assert.Empty(t, entries)
}
