package http_test

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/topolab"
	"github.com/aretw0/topolab/internal/testutils"
	api "github.com/aretw0/topolab/pkg/adapters/http"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *httptest.Server
	agent *testutils.Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	streams := api.NewStreamManager(nil)
	ctl := topolab.New(
		topolab.WithProjectsPath(t.TempDir()),
		topolab.WithPublisher(streams),
	)
	srv := httptest.NewServer(api.NewHandler(ctl, api.WithStreams(streams)))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, agent: testutils.NewAgent(t)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (f *fixture) addCompute(t *testing.T, id string) {
	t.Helper()
	conn := f.agent.Connection()
	resp, body := f.do(t, http.MethodPost, "/v2/computes", map[string]any{
		"compute_id": id, "protocol": "http", "host": conn.Host, "port": conn.Port, "password": "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["connected"])
	assert.NotContains(t, body, "password")
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/v2/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.Version, body["version"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestComputes(t *testing.T) {
	f := newFixture(t)
	f.addCompute(t, "vm-1")

	resp, _ := f.do(t, http.MethodPost, "/v2/computes", map[string]any{"compute_id": "vm-1", "host": "10.0.0.9", "port": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/v2/computes/vm-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "vm-1", body["compute_id"])

	resp, body = f.do(t, http.MethodGet, "/v2/computes/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, float64(http.StatusNotFound), body["status"])

	resp, _ = f.do(t, http.MethodPost, "/v2/computes", map[string]any{"compute_id": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProjectNodesAndLinks(t *testing.T) {
	f := newFixture(t)
	f.addCompute(t, "vm-1")

	resp, project := f.do(t, http.MethodPost, "/v2/projects", map[string]any{"name": "lab"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := project["project_id"].(string)
	assert.Equal(t, "opened", project["status"])
	base := "/v2/projects/" + id

	for _, n := range []string{"pc1", "pc2"} {
		resp, node := f.do(t, http.MethodPost, base+"/nodes", map[string]any{
			"node_id": n, "name": strings.ToUpper(n), "node_type": "vpcs", "compute_id": "vm-1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotZero(t, node["console"])
	}

	resp, _ = f.do(t, http.MethodPost, base+"/nodes", map[string]any{"name": "X", "node_type": "bogus", "compute_id": "vm-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, base+"/nodes", map[string]any{"node_id": "pc1", "name": "PC1", "node_type": "vpcs", "compute_id": "vm-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, link := f.do(t, http.MethodPost, base+"/links", map[string]any{"nodes": []map[string]any{
		{"node_id": "pc1", "adapter_number": 0, "port_number": 0},
		{"node_id": "pc2", "adapter_number": 0, "port_number": 0},
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	linkID := link["link_id"].(string)

	resp, node := f.do(t, http.MethodPost, base+"/nodes/pc1/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "started", node["status"])

	resp, _ = f.do(t, http.MethodGet, base+"/export", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, base+"/nodes/pc1/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, base+"/links/"+linkID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, base+"/links/"+linkID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, base+"/nodes/pc2", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, project = f.do(t, http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "closed", project["status"])

	resp, _ = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	f.addCompute(t, "vm-1")
	_, project := f.do(t, http.MethodPost, "/v2/projects", map[string]any{"name": "lab"})
	base := "/v2/projects/" + project["project_id"].(string)
	resp, _ := f.do(t, http.MethodPost, base+"/nodes", map[string]any{"name": "PC1", "node_type": "vpcs", "compute_id": "vm-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	exported, err := http.Get(f.srv.URL + base + "/export")
	require.NoError(t, err)
	defer exported.Body.Close()
	require.Equal(t, http.StatusOK, exported.StatusCode)
	archive, err := io.ReadAll(exported.Body)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, domain.DescriptorName, zr.File[0].Name)

	imported, err := http.Post(f.srv.URL+"/v2/projects/new/import?name=copy", "application/octet-stream", bytes.NewReader(archive))
	require.NoError(t, err)
	defer imported.Body.Close()
	require.Equal(t, http.StatusCreated, imported.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(imported.Body).Decode(&body))
	assert.Equal(t, "copy", body["name"])
	assert.Equal(t, "closed", body["status"])

	resp, opened := f.do(t, http.MethodPost, "/v2/projects/"+body["project_id"].(string)+"/open", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "opened", opened["status"])
}

func TestImportRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/v2/projects/new/import", "application/octet-stream", strings.NewReader("not a zip"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	f.addCompute(t, "vm-1")
	_, project := f.do(t, http.MethodPost, "/v2/projects", map[string]any{"name": "lab"})
	base := "/v2/projects/" + project["project_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+base+"/notifications?actions=node", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	resp, _ := f.do(t, http.MethodPost, base+"/nodes", map[string]any{"node_id": "pc1", "name": "PC1", "node_type": "vpcs", "compute_id": "vm-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var event domain.Event
	for lines.Scan() {
		if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok && data != "connected" {
			require.NoError(t, json.Unmarshal([]byte(data), &event))
			break
		}
	}
	assert.Equal(t, domain.ActionNodeCreated, event.Action)
	assert.Equal(t, project["project_id"], event.ProjectID)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrProjectNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrNodeNotFound), http.StatusNotFound},
		{domain.ConflictError("op", "busy"), http.StatusConflict},
		{domain.ConnectionError("op", errors.New("refused")), http.StatusServiceUnavailable},
		{domain.BackendCommandError("op", 500, "boom"), http.StatusBadGateway},
		{domain.ArchiveError("op", errors.New("disk")), http.StatusInternalServerError},
		{domain.ConfigurationError("op", "bad"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, api.StatusOf(c.err), c.err.Error())
	}
}

func TestStreamManager_PublishReachesProjectSubscribers(t *testing.T) {
	sm := api.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("p1")
	defer cancel()
	other, cancelOther := sm.Subscribe("p2")
	defer cancelOther()

	require.NoError(t, sm.Publish(context.Background(), domain.NewEvent(domain.ActionLinkCreated, "p1", nil)))

	select {
	case msg := <-ch:
		assert.Contains(t, msg, `"action":"link.created"`)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	select {
	case msg := <-other:
		t.Fatalf("unexpected message for p2: %s", msg)
	default:
	}
}
