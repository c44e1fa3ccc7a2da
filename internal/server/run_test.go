package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/config"
	"github.com/cliffyan/go-source-finder/internal/mcp"
	"github.com/cliffyan/go-source-finder/internal/sources"
)

// blockingFinder holds every Find call until release is closed.
type blockingFinder struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingFinder) Configured() bool { return true }

func (f *blockingFinder) Find(context.Context, sources.Request) (*sources.Outcome, error) {
	close(f.started)
	<-f.release
	return &sources.Outcome{Results: []sources.SearchResult{}, Attempts: 1}, nil
}

func TestRunDrainsInFlightRequests(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{}), release: make(chan struct{})}
	cfg := config.DefaultConfig
	s := New(&cfg, finder, mcp.NewHandler(&cfg, finder, nil, zap.NewNop()), nil, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.serve(ctx, ln, 5*time.Second) }()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/v1/sources/find",
			"application/json", strings.NewReader(`{"text":"Kapil Dev"}`))
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-finder.started
	cancel()

	select {
	case err := <-runErr:
		t.Fatalf("serve returned before the in-flight request finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(finder.release)
	assert.Equal(t, http.StatusOK, <-status)
	assert.NoError(t, <-runErr)
}

func TestRunClosesMCPStreams(t *testing.T) {
	cfg := config.DefaultConfig
	finder := &fakeFinder{}
	s := New(&cfg, finder, mcp.NewHandler(&cfg, finder, nil, zap.NewNop()), nil, zap.NewNop())
	session := s.createSession()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.serve(ctx, ln, 5*time.Second) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(sessionHeader, session)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: endpoint\n", line)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("open stream held shutdown until the grace period")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.DefaultConfig
	cfg.Server.Host = "127.0.0.1"
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	cfg.Server.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	s := New(&cfg, &fakeFinder{}, nil, nil, zap.NewNop())
	err = s.Run(context.Background(), time.Second)
	assert.ErrorContains(t, err, "listen")
}
