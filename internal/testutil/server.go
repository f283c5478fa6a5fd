package testutil

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	memoryrepo "github.com/tendant/simple-upload/pkg/simpleupload/repo/memory"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	"github.com/tendant/simple-upload/pkg/simpleupload/storageworker"
	"github.com/tendant/simple-upload/pkg/simpleupload/token"
)

// Signing keys shared by the test worker and the issuers talking to it
const (
	ClientKey  = "test-client-key"
	BackendKey = "test-backend-key"
)

// Clock is a settable time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// WorkerEnv is a running memory-backed reference worker
type WorkerEnv struct {
	Server *httptest.Server
	Worker *storageworker.Server
	Store  *memorystorage.Backend
	Repo   *memoryrepo.Repository
	Clock  *Clock
}

// URL returns the worker base URL
func (e *WorkerEnv) URL() string {
	return e.Server.URL
}

// Issuer returns a token issuer whose keys the worker accepts
func (e *WorkerEnv) Issuer(opts ...token.Option) *token.Issuer {
	base := []token.Option{token.WithClientKey(ClientKey), token.WithBackendKey(BackendKey)}
	return token.New(append(base, opts...)...)
}

// SetupWorkerServer starts a reference storage worker backed by memory
// storage. The server is closed when the test ends.
func SetupWorkerServer(t testing.TB, opts ...storageworker.Option) *WorkerEnv {
	t.Helper()

	env := &WorkerEnv{
		Store: memorystorage.New(),
		Repo:  memoryrepo.New(),
		Clock: NewClock(time.Now().UTC()),
	}

	// The listener exists before Start, so file URLs can point at it
	env.Server = httptest.NewUnstartedServer(nil)
	baseURL := "http://" + env.Server.Listener.Addr().String()

	workerOpts := []storageworker.Option{
		storageworker.WithBlobStore(env.Store),
		storageworker.WithRepository(env.Repo),
		storageworker.WithVerifier(token.NewVerifier(ClientKey, BackendKey)),
		storageworker.WithPublicBaseURL(baseURL),
		storageworker.WithClock(env.Clock.Now),
	}
	worker, err := storageworker.New(append(workerOpts, opts...)...)
	require.NoError(t, err)

	env.Worker = worker
	env.Server.Config.Handler = worker
	env.Server.Start()
	t.Cleanup(env.Server.Close)

	return env
}
