package bindings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/simple-gravity/gravity-host/internal/wasm"
	"github.com/simple-gravity/gravity-host/internal/wasm/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newInitializer(t *testing.T) (*Initializer, *wasm.Runtime) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	runtime, err := wasm.NewRuntime(context.Background(), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(context.Background()) })

	return NewInitializer(runtime, logger), runtime
}

func mailbox(t *testing.T, out *InitOutput, addr uint32) uint32 {
	t.Helper()
	v, ok := out.Instance().Module().Memory().ReadUint32Le(addr)
	require.True(t, ok)
	return v
}

func writeGame(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultModulePath)
	require.NoError(t, os.WriteFile(path, wasmtest.Game().Encode(), 0644))
	return path
}

func gameServer(t *testing.T) *httptest.Server {
	t.Helper()
	game := wasmtest.Game().Encode()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + DefaultModulePath:
			w.Header().Set("Content-Type", "application/wasm")
			w.Write(game)
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitFromBytesRunsStart(t *testing.T) {
	initr, _ := newInitializer(t)
	ctx := context.Background()

	out, err := initr.Init(ctx, FromBytes(wasmtest.Game().Encode()), nil)
	require.NoError(t, err)
	defer out.Close(ctx)

	assert.Equal(t, uint32(1), mailbox(t, out, wasmtest.StartCalls))
	assert.True(t, out.Report().OK())
	assert.Contains(t, out.Module().Name, "sha256:")
}

func TestInitSkipStart(t *testing.T) {
	initr, _ := newInitializer(t)
	ctx := context.Background()

	out, err := initr.Init(ctx, FromBytes(wasmtest.Game().Encode()), &Options{SkipStart: true})
	require.NoError(t, err)

	assert.Equal(t, uint32(0), mailbox(t, out, wasmtest.StartCalls))
	require.NoError(t, out.Start(ctx))
	assert.Equal(t, uint32(1), mailbox(t, out, wasmtest.StartCalls))
}

func TestInitFromBytesSharesCompiledModule(t *testing.T) {
	initr, _ := newInitializer(t)
	ctx := context.Background()
	game := wasmtest.Game().Encode()

	a, err := initr.Init(ctx, FromBytes(game), nil)
	require.NoError(t, err)
	b, err := initr.Init(ctx, FromBytes(bytes.Clone(game)), nil)
	require.NoError(t, err)

	assert.Same(t, a.Module(), b.Module())
	assert.NotEqual(t, a.Instance().ID, b.Instance().ID)
}

func TestInitFromPath(t *testing.T) {
	initr, _ := newInitializer(t)
	path := writeGame(t, t.TempDir())

	out, err := initr.Init(context.Background(), FromPath(path), &Options{InstanceID: "player-one"})
	require.NoError(t, err)
	assert.Equal(t, "player-one", out.Instance().ID)
}

func TestInitNilInputUsesDefaultPath(t *testing.T) {
	initr, _ := newInitializer(t)
	path := writeGame(t, t.TempDir())

	out, err := initr.Init(context.Background(), nil, &Options{DefaultPath: path})
	require.NoError(t, err)
	assert.Equal(t, path, out.Module().Name)
}

func TestInitMissingFile(t *testing.T) {
	initr, _ := newInitializer(t)

	_, err := initr.Init(context.Background(), FromPath(filepath.Join(t.TempDir(), "nope.wasm")), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInitFromURL(t *testing.T) {
	initr, _ := newInitializer(t)
	srv := gameServer(t)

	out, err := initr.Init(context.Background(), FromURL(srv.URL+"/"+DefaultModulePath), &Options{HTTPClient: srv.Client()})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), mailbox(t, out, wasmtest.StartCalls))
}

func TestInitFromRequest(t *testing.T) {
	initr, _ := newInitializer(t)
	srv := gameServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/"+DefaultModulePath, nil)
	require.NoError(t, err)

	_, err = initr.Init(context.Background(), FromRequest(req), nil)
	require.NoError(t, err)
}

func TestInitFromResponse(t *testing.T) {
	initr, _ := newInitializer(t)
	srv := gameServer(t)

	resp, err := srv.Client().Get(srv.URL + "/" + DefaultModulePath)
	require.NoError(t, err)

	_, err = initr.Init(context.Background(), FromResponse(resp), nil)
	require.NoError(t, err)
}

func TestInitFromFailedResponse(t *testing.T) {
	initr, _ := newInitializer(t)
	srv := gameServer(t)

	resp, err := srv.Client().Get(srv.URL + "/broken")
	require.NoError(t, err)

	_, err = initr.Init(context.Background(), FromResponse(resp), nil)
	var fetchErr *wasm.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestInitFromReader(t *testing.T) {
	initr, _ := newInitializer(t)

	out, err := initr.Init(context.Background(), FromReader("stream", bytes.NewReader(wasmtest.Game().Encode())), nil)
	require.NoError(t, err)
	assert.Equal(t, "stream", out.Module().Name)
}

func TestInitFromCompiled(t *testing.T) {
	initr, runtime := newInitializer(t)
	ctx := context.Background()

	compiled, report, err := initr.Compile(ctx, FromBytes(wasmtest.Game().Encode()), nil)
	require.NoError(t, err)
	require.True(t, report.OK())

	out, err := initr.Init(ctx, FromCompiled(compiled), nil)
	require.NoError(t, err)
	assert.Same(t, compiled, out.Module())

	cached, ok := runtime.GetCompiledModule(compiled.Name)
	require.True(t, ok)
	assert.Same(t, compiled, cached)
}

func TestInitPending(t *testing.T) {
	initr, _ := newInitializer(t)
	game := wasmtest.Game().Encode()

	input := Pending(func(ctx context.Context) (InitInput, error) {
		return Pending(func(ctx context.Context) (InitInput, error) {
			return FromBytes(game), nil
		}), nil
	})

	out, err := initr.Init(context.Background(), input, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), mailbox(t, out, wasmtest.StartCalls))
}

func TestInitPendingNilUsesDefault(t *testing.T) {
	initr, _ := newInitializer(t)
	path := writeGame(t, t.TempDir())

	input := Pending(func(ctx context.Context) (InitInput, error) { return nil, nil })

	out, err := initr.Init(context.Background(), input, &Options{DefaultPath: path})
	require.NoError(t, err)
	assert.Equal(t, path, out.Module().Name)
}

func TestInitPendingError(t *testing.T) {
	initr, _ := newInitializer(t)
	cause := errors.New("asset server unreachable")

	_, err := initr.Init(context.Background(), Pending(func(ctx context.Context) (InitInput, error) {
		return nil, cause
	}), nil)
	assert.ErrorIs(t, err, cause)
}

func TestInitPendingTooDeep(t *testing.T) {
	initr, _ := newInitializer(t)

	var forever func(ctx context.Context) (InitInput, error)
	forever = func(ctx context.Context) (InitInput, error) { return Pending(forever), nil }

	_, err := initr.Init(context.Background(), Pending(forever), nil)
	assert.ErrorIs(t, err, ErrPendingTooDeep)
}

func TestInitCancelledContext(t *testing.T) {
	initr, _ := newInitializer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := initr.Init(ctx, Pending(func(ctx context.Context) (InitInput, error) {
		t.Fatal("pending input resolved after cancellation")
		return nil, nil
	}), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInitRejectsMismatchedBinary(t *testing.T) {
	initr, runtime := newInitializer(t)

	_, err := initr.Init(context.Background(), FromBytes(wasmtest.Game().Without("frame").Encode()), nil)

	var mismatch *SignatureMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, runtime.InstanceCount())
}

func TestPackageInit(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := wasm.NewRuntime(ctx, logger, nil)
	require.NoError(t, err)
	defer runtime.Close(ctx)

	out, err := Init(ctx, runtime, FromReader("game", io.NopCloser(bytes.NewReader(wasmtest.Game().Encode()))), nil)
	require.NoError(t, err)
	require.NoError(t, out.Close(ctx))
}
