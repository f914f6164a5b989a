package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildtrigger/internal/artifact"
	"git.home.luguber.info/inful/buildtrigger/internal/config"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
	"git.home.luguber.info/inful/buildtrigger/internal/workspace"
)

type fakePipeline struct {
	result   pipeline.Result
	err      error
	current  pipeline.Run
	artifact string
	artErr   error
}

func (f *fakePipeline) TriggerRun(context.Context, string) (pipeline.Result, error) {
	return f.result, f.err
}
func (f *fakePipeline) Current() pipeline.Run { return f.current }
func (f *fakePipeline) Artifact() (string, error) {
	return f.artifact, f.artErr
}
func (f *fakePipeline) Settings() pipeline.Settings {
	return pipeline.Settings{Concurrency: config.ConcurrencyReject}
}

type failingLog struct{}

func (failingLog) ReadAll(context.Context) ([]runlog.Entry, error) {
	return nil, ferrors.RunLogError("failed to read run log").Build()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func memLog() *runlog.RunLog { return runlog.New(runlog.NewMemoryStore(), nil) }

func TestBuild_Success(t *testing.T) {
	p := &fakePipeline{result: pipeline.Result{RunID: 3, Stage: pipeline.StageSucceeded, ArtifactPath: "/tmp/a.zip"}}
	s := New(p, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/build")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[BuildResponse](t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, uint64(3), body.RunID)
	assert.Equal(t, "/artifacts", body.Artifact)
}

func TestBuild_StageFailure(t *testing.T) {
	p := &fakePipeline{result: pipeline.Result{
		RunID: 4, Stage: pipeline.StageFailed, FailedStage: pipeline.StageBuilding,
		Message: "make exited with status 2", Err: errors.New("make exited with status 2"),
	}}
	s := New(p, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/build")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[BuildResponse](t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "building", body.FailedStage)
	assert.Contains(t, body.Message, "make exited with status 2")
}

func TestBuild_Busy(t *testing.T) {
	p := &fakePipeline{
		result: pipeline.Result{RunID: 7, Stage: pipeline.StageBuilding, Busy: true},
		err:    pipeline.ErrBusy,
	}
	s := New(p, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/build")
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ferrors.HTTPErrorResponse](t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "conflict", body.Code)
	assert.EqualValues(t, 7, body.Details["run_id"])
}

func TestBuild_WrongMethod(t *testing.T) {
	s := New(&fakePipeline{}, memLog(), Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/build")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestErrors_ReturnsLogText(t *testing.T) {
	l := memLog()
	l.Error(context.Background(), 1, "fetching", "repository not found")
	s := New(&fakePipeline{}, l, Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/errors")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[ErrorsResponse](t, rec)
	assert.Contains(t, body.Errors, "ERROR [run 1] fetching: repository not found")
}

func TestErrors_EmptyLog(t *testing.T) {
	s := New(&fakePipeline{}, memLog(), Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/errors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"errors":""}`, rec.Body.String())
}

func TestErrors_ReadFailure(t *testing.T) {
	s := New(&fakePipeline{}, failingLog{}, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/errors")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestArtifacts_NoneAvailable(t *testing.T) {
	p := &fakePipeline{artErr: ferrors.NotFoundError("no successful build artifact available").Build()}
	s := New(p, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/artifacts")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ferrors.HTTPErrorResponse](t, rec)
	assert.Equal(t, "not_found", body.Code)
}

func TestArtifacts_Download(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build_artifacts.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK-fake"), 0o600))
	s := New(&fakePipeline{artifact: path}, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/artifacts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="build_artifacts.zip"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-fake", rec.Body.String())
}

func TestStatusAndHealth(t *testing.T) {
	p := &fakePipeline{
		current: pipeline.Run{ID: 2, Stage: pipeline.StageFailed, FailedStage: pipeline.StageFetching},
		artErr:  errors.New("none"),
	}
	s := New(p, memLog(), Options{})

	rec := do(t, s.Handler(), http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.Equal(t, uint64(2), status.Run.ID)
	assert.Equal(t, pipeline.StageFetching, status.Run.FailedStage)
	assert.False(t, status.ArtifactAvailable)
	assert.Equal(t, "reject", status.Concurrency)

	rec = do(t, s.Handler(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestMetrics_MountedOnlyWhenConfigured(t *testing.T) {
	s := New(&fakePipeline{}, memLog(), Options{})
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/metrics").Code)

	s = New(&fakePipeline{}, memLog(), Options{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "metric 1\n")
	})})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metric 1\n", rec.Body.String())
}

type fetchFunc func(ctx context.Context, loc, dest string) error

func (f fetchFunc) Fetch(ctx context.Context, loc, dest string) error { return f(ctx, loc, dest) }

type runFunc func(ctx context.Context, ws string) error

func (f runFunc) Run(ctx context.Context, ws string) error { return f(ctx, ws) }

func TestEndToEnd_BuildThenDownload(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	l := memLog()
	orch := pipeline.New(pipeline.Components{
		Fetcher: fetchFunc(func(_ context.Context, _, dest string) error { return workspace.Reset(dest) }),
		Runner: runFunc(func(_ context.Context, ws string) error {
			if err := os.MkdirAll(filepath.Join(ws, "build"), 0o750); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(ws, "build", "index.html"), []byte("<h1>ok</h1>"), 0o600)
		}),
		Packager: artifact.NewZipPackager("build", "build_artifacts.zip"),
		Settings: pipeline.Settings{
			SourceURL:    "file:///src",
			Workspace:    ws,
			ArtifactDir:  filepath.Join(root, "artifacts"),
			StageTimeout: time.Minute,
			Concurrency:  config.ConcurrencyReject,
		},
	}, l)

	srv := httptest.NewServer(New(orch, l, Options{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/build", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	archive := filepath.Join(root, "download.zip")
	require.NoError(t, os.WriteFile(archive, data, 0o600))
	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "build/index.html")
}

func TestStartStop(t *testing.T) {
	s := New(&fakePipeline{}, memLog(), Options{Address: "127.0.0.1:0"})
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
