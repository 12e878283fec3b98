package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/registrar/internal/config"
	"github.com/turbolytics/registrar/pkg/reconciler"
	"github.com/turbolytics/registrar/pkg/reporter"
)

const basePath = "/risk-manager/api-server"

type fakeAPI struct {
	creates atomic.Int32
	links   atomic.Int32
	failGQL bool
}

func newFakeAPI(t *testing.T, f *fakeAPI) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Route(basePath+"/v1", func(r chi.Router) {
		r.Post("/graphql", func(w http.ResponseWriter, req *http.Request) {
			if f.failGQL {
				writeJSON(w, http.StatusOK, map[string]any{
					"errors": []map[string]any{{"message": "not authorized"}},
				})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"assets": map[string]any{
						"pageData": []map[string]any{
							{"id": "a1", "name": "svc-a", "assetTypeLabel": reconciler.DefaultAssetType, "uri": "u1"},
							{"id": "a2", "name": "repo-x", "assetTypeLabel": "Repository", "uri": "u2"},
							{"id": "a3", "name": "svc-b", "assetTypeLabel": reconciler.DefaultAssetType, "uri": "u3"},
						},
					},
				},
			})
		})
		r.Post("/applications", func(w http.ResponseWriter, req *http.Request) {
			n := f.creates.Add(1)
			writeJSON(w, http.StatusCreated, map[string]any{"id": "app-" + string(rune('0'+n))})
		})
		r.Put("/assets", func(w http.ResponseWriter, req *http.Request) {
			f.links.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvKeyID, "test-key-id")
	t.Setenv(config.EnvKeySecret, "00112233445566778899aabbccddeeff")
}

func execute(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestMenu(t *testing.T) {
	setCredentials(t)
	f := &fakeAPI{}
	srv := newFakeAPI(t, f)
	dir := t.TempDir()

	out, err := execute(t, "9\n1\n2\n",
		"--base-url", srv.URL+basePath,
		"--log-file", filepath.Join(dir, "registrar.log"),
		"--report-dir", dir,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "VRM Script Toolbox")
	assert.Contains(t, out, "1) Create and link VRM Applications to Veracode App-profiles (1 to 1)")
	assert.NotContains(t, out, "unlinked")
	assert.Contains(t, out, "Invalid choice; please try again.")
	assert.Contains(t, out, "Processing: svc-a")
	assert.Contains(t, out, "Processing: svc-b")
	assert.NotContains(t, out, "repo-x")
	assert.Contains(t, out, "Summary: 2 apps created, 2 assets linked")
	assert.Contains(t, out, "Bye!")
	assert.Equal(t, 3, strings.Count(out, "VRM Script Toolbox"))

	assert.EqualValues(t, 2, f.creates.Load())
	assert.EqualValues(t, 2, f.links.Load())

	reports, err := filepath.Glob(filepath.Join(dir, "*", "report.json"))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	bs, err := os.ReadFile(reports[0])
	require.NoError(t, err)
	var report reporter.Report
	require.NoError(t, json.Unmarshal(bs, &report))
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Linked)
	assert.Equal(t, filepath.Base(filepath.Dir(reports[0])), report.RunID)

	logs, err := os.ReadFile(filepath.Join(dir, "registrar.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "svc-a")
}

func TestMenuReturnsAfterFailedRun(t *testing.T) {
	setCredentials(t)
	f := &fakeAPI{failGQL: true}
	srv := newFakeAPI(t, f)
	dir := t.TempDir()

	out, err := execute(t, "1\n2\n",
		"--base-url", srv.URL+basePath,
		"--log-file", filepath.Join(dir, "registrar.log"),
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Run aborted")
	assert.Contains(t, out, "not authorized")
	assert.Contains(t, out, "Bye!")
	assert.EqualValues(t, 0, f.creates.Load())
	assert.EqualValues(t, 0, f.links.Load())
}

func TestMenuEndOfInput(t *testing.T) {
	setCredentials(t)
	srv := newFakeAPI(t, &fakeAPI{})
	dir := t.TempDir()

	out, err := execute(t, "",
		"--base-url", srv.URL+basePath,
		"--log-file", filepath.Join(dir, "registrar.log"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "VRM Script Toolbox")
}

func TestReconcileRun(t *testing.T) {
	setCredentials(t)

	t.Run("success", func(t *testing.T) {
		f := &fakeAPI{}
		srv := newFakeAPI(t, f)
		dir := t.TempDir()

		out, err := execute(t, "",
			"--base-url", srv.URL+basePath,
			"--log-file", filepath.Join(dir, "registrar.log"),
			"reconcile", "run",
		)
		require.NoError(t, err)
		assert.Contains(t, out, "Summary: 2 apps created, 2 assets linked")
		assert.NotContains(t, out, "VRM Script Toolbox")
	})

	t.Run("query failure is fatal", func(t *testing.T) {
		srv := newFakeAPI(t, &fakeAPI{failGQL: true})
		dir := t.TempDir()

		_, err := execute(t, "",
			"--base-url", srv.URL+basePath,
			"--log-file", filepath.Join(dir, "registrar.log"),
			"reconcile", "run",
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, reconciler.ErrQuery)
	})
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv(config.EnvKeyID, "")
	t.Setenv(config.EnvKeySecret, "")
	dir := t.TempDir()

	_, err := execute(t, "1\n",
		"--credentials-file", filepath.Join(dir, "missing"),
		"--log-file", filepath.Join(dir, "registrar.log"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconciler.ErrSetup)
}

func TestAssetsListTable(t *testing.T) {
	setCredentials(t)
	srv := newFakeAPI(t, &fakeAPI{})
	dir := t.TempDir()

	out, err := execute(t, "",
		"--base-url", srv.URL+basePath,
		"--log-file", filepath.Join(dir, "registrar.log"),
		"assets", "list",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "svc-a")
	assert.Contains(t, out, "2 matching assets")
	assert.NotContains(t, out, "unlinked")
}

func TestAssetsList(t *testing.T) {
	setCredentials(t)
	f := &fakeAPI{}
	srv := newFakeAPI(t, f)
	dir := t.TempDir()

	out, err := execute(t, "",
		"--base-url", srv.URL+basePath,
		"--log-file", filepath.Join(dir, "registrar.log"),
		"assets", "list", "-o", "json",
	)
	require.NoError(t, err)

	var listed []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "svc-a", listed[0]["name"])
	assert.Equal(t, "u3", listed[1]["link_key"])

	assert.EqualValues(t, 0, f.creates.Load())
	assert.EqualValues(t, 0, f.links.Load())
}
