package compute_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connFor turns an httptest server URL into a compute connection descriptor.
func connFor(t *testing.T, srv *httptest.Server) compute.Connection {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return compute.Connection{Protocol: "http", Host: host, Port: p, User: "test", Password: "secure"}
}

type wireProject struct{ id string }

func (p wireProject) WireBody() any {
	return map[string]any{"project_id": p.id, "name": "Test"}
}

func TestNew_LocalIDRequiresLocalConfig(t *testing.T) {
	_, err := compute.New(compute.LocalID, compute.Connection{Host: "127.0.0.1", Port: 3080}, compute.WithLocal(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))

	c, err := compute.New(compute.LocalID, compute.Connection{Host: "127.0.0.1", Port: 3080}, compute.WithLocal(true))
	require.NoError(t, err)
	assert.Equal(t, compute.LocalID, c.ID())

	// Non-reserved ids never depend on the local flag
	_, err = compute.New("test", compute.Connection{Host: "example.com", Port: 84}, compute.WithLocal(true))
	assert.NoError(t, err)
}

func TestConnection_BaseURL(t *testing.T) {
	conn := compute.Connection{Protocol: "https", Host: "example.com", Port: 84}
	assert.Equal(t, "https://example.com:84/v2/compute", conn.BaseURL())
}

func TestCall_EchoesBodyAndMarksConnected(t *testing.T) {
	var gotPath, gotContentType, gotUser string
	r := chi.NewRouter()
	r.Post("/v2/compute/projects", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		io.Copy(w, r.Body)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := compute.New("my_compute_id", connFor(t, srv))
	require.NoError(t, err)
	assert.False(t, c.Connected())

	resp, err := c.Post(context.Background(), "/projects", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, map[string]any{"a": "b"}, resp.Body)
	assert.True(t, c.Connected())

	assert.Equal(t, "/v2/compute/projects", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "test", gotUser)
}

func TestCall_SerializesWireMarshaler(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := compute.New("c1", connFor(t, srv))
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), "/projects", wireProject{id: "p1"})
	require.NoError(t, err)
	assert.Nil(t, resp.Body)
	assert.Equal(t, map[string]any{"project_id": "p1", "name": "Test"}, received)
}

func TestCall_ConflictYieldsConflictError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message": "project is locked"}`))
	}))
	defer srv.Close()

	c, err := compute.New("c1", connFor(t, srv))
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "/projects", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "project is locked", derr.Message)
	assert.True(t, c.Connected(), "an answered call proves liveness whatever the status")
}

func TestCall_OtherFailureYieldsBackendCommandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such image", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := compute.New("c1", connFor(t, srv))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/images")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendCommand)
	assert.NotErrorIs(t, err, domain.ErrConflict)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusNotFound, derr.Status)
	assert.Equal(t, "no such image", derr.Message)
}

func TestCall_UnreachableYieldsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	conn := connFor(t, srv)

	c, err := compute.New("c1", conn)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/version")
	require.NoError(t, err)
	assert.True(t, c.Connected())

	srv.Close()

	_, err = c.Get(context.Background(), "/version")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.False(t, c.Connected())
}

func TestCall_CanceledContextKeepsLiveness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := compute.New("c1", connFor(t, srv))
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/version")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Get(ctx, "/version")
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.KindConnection, domain.KindOf(err))
	assert.True(t, c.Connected())
}

func TestConnect_RecordsVersion(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v2/compute/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version": "2.0.0", "local": false}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := compute.New("c1", connFor(t, srv))
	require.NoError(t, err)
	assert.Empty(t, c.Version())

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, "2.0.0", c.Version())
}

func TestWireBody_OmitsPassword(t *testing.T) {
	c, err := compute.New("my_compute_id", compute.Connection{
		Protocol: "https", Host: "example.com", Port: 84, User: "test", Password: "secure",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"compute_id": "my_compute_id",
		"protocol":   "https",
		"host":       "example.com",
		"port":       84,
		"user":       "test",
		"connected":  false,
		"version":    "",
	}, c.WireBody())
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	m := compute.NewMetrics(prometheus.NewRegistry())
	c, err := compute.New("c1", connFor(t, srv), compute.WithMetrics(m))
	require.NoError(t, err)

	_, _ = c.Get(context.Background(), "/version")
	status.Store(http.StatusConflict)
	_, _ = c.Get(context.Background(), "/version")
	_, _ = c.Get(context.Background(), "/version")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("c1", "GET", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests().WithLabelValues("c1", "GET", "conflict")))
}
