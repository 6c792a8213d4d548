package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/api/shared"
	"github.com/autonfe/desk/internal/cancel"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/retrieval"
	"github.com/autonfe/desk/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingClient reports one step and then waits for cancellation.
type blockingClient struct{}

func (blockingClient) FetchNFe(ctx context.Context, _ retrieval.NFeRequest, token cancel.Token, progress task.ProgressFunc, _ task.StatusFunc) error {
	progress(1, 10)
	select {
	case <-token.Done():
		return cancel.ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c blockingClient) FetchNFSe(ctx context.Context, _ retrieval.NFSeRequest, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error {
	return c.FetchNFe(ctx, retrieval.NFeRequest{}, token, progress, status)
}

type testAPI struct {
	server *httptest.Server
	loop   *dispatch.Loop
	runner *task.Runner
	center *notify.Center
}

func newTestAPI(t *testing.T, validateNFe func(retrieval.NFeRequest) error) *testAPI {
	t.Helper()
	return newTestAPIWithTimeout(t, validateNFe, 0)
}

func newTestAPIWithTimeout(t *testing.T, validateNFe func(retrieval.NFeRequest) error, invokeTimeout time.Duration) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := dispatch.NewLoop(logger)

	runnerConfig := task.DefaultRunnerConfig()
	runnerConfig.Logger = logger
	runner := task.NewRunner(loop, runnerConfig)

	centerConfig := notify.DefaultConfig()
	centerConfig.Logger = logger
	centerConfig.Scheduler = notify.NewManualScheduler()
	center := notify.NewCenter(loop, nil, centerConfig)

	var machine *action.Machine
	require.NoError(t, dispatch.Invoke(t.Context(), loop, func() {
		machine = action.NewMachine(runner, center, nil, logger)
	}))

	handler := NewRetrievalHandler(HandlerConfig{
		Dispatcher:    loop,
		Machine:       machine,
		Center:        center,
		Client:        blockingClient{},
		ValidateNFe:   validateNFe,
		InvokeTimeout: invokeTimeout,
		Logger:        logger,
	})
	server := httptest.NewServer(NewRouter(handler, logger))

	t.Cleanup(func() {
		runner.Cancel()
		ctx, cancelWait := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelWait()
		_ = runner.Wait(ctx)
		server.Close()
		loop.Stop()
	})
	return &testAPI{server: server, loop: loop, runner: runner, center: center}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, a.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func acceptAll(retrieval.NFeRequest) error { return nil }

func TestStartNFe_Accepted(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{TaxID: "11222333000181"})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	body := decode[StartResponse](t, resp)
	assert.Equal(t, action.PhaseRunning, body.Panel.Phase)
	assert.False(t, body.Panel.StartEnabled)
	assert.True(t, body.Panel.CancelEnabled)
	assert.Equal(t, retrieval.JobNFe, body.Panel.Job)
}

func TestStartNFe_ValidationFailure(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, func(retrieval.NFeRequest) error {
		return &retrieval.ValidationError{Message: "invalid credential"}
	})
	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid credential", decode[shared.ErrorResponse](t, resp).Error)

	toasts := decode[[]notify.Toast](t, api.do(t, http.MethodGet, "/v1/toasts", nil))
	require.Len(t, toasts, 1)
	assert.Equal(t, "invalid credential", toasts[0].Message)
	assert.Equal(t, notify.SeverityError, toasts[0].Severity)

	panel := decode[action.Panel](t, api.do(t, http.MethodGet, "/v1/panel", nil))
	assert.Equal(t, action.PhaseIdle, panel.Phase)
	assert.True(t, panel.StartEnabled)
}

func TestStartNFe_UnreadableCertificateIsBadRequest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	api := newTestAPI(t, func(retrieval.NFeRequest) error {
		_, err := retrieval.CheckCertificate(dir, "secret", time.Now())
		return err
	})
	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{TaxID: "11222333000181"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[shared.ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "Certificate could not be read")
	assert.Equal(t, task.StateIdle, api.runner.State())
}

func TestStartNFSe_ValidatesRequest(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfse", retrieval.NFSeRequest{User: "joao"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, decode[shared.ErrorResponse](t, resp).Error)
}

func TestStart_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfe", map[string]string{"certificate": "x"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStart_BusyWhileRunning(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	first := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{})
	require.Equal(t, http.StatusAccepted, first.StatusCode)

	second := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{})
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	require.Equal(t, http.StatusAccepted,
		api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{}).StatusCode)

	resp := api.do(t, http.MethodDelete, "/v1/retrievals/current", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	cancelling := decode[action.Panel](t, resp)
	assert.Equal(t, action.PhaseCancelling, cancelling.Phase)
	assert.False(t, cancelling.CancelEnabled)
	assert.Equal(t, action.TextCancelling, cancelling.StatusText)

	ctx, cancelWait := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancelWait()
	require.NoError(t, api.runner.Wait(ctx))
	require.NoError(t, api.loop.Flush(ctx))

	panel := decode[action.Panel](t, api.do(t, http.MethodGet, "/v1/panel", nil))
	assert.Equal(t, action.PhaseIdle, panel.Phase)
	assert.True(t, panel.StartEnabled)
	assert.False(t, panel.ProgressVisible)
	assert.False(t, panel.StatusVisible)

	toasts := decode[[]notify.Toast](t, api.do(t, http.MethodGet, "/v1/toasts", nil))
	for _, toast := range toasts {
		assert.NotEqual(t, notify.SeverityError, toast.Severity)
	}
}

func TestCancel_NothingRunning(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	resp := api.do(t, http.MethodDelete, "/v1/retrievals/current", nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "No download in progress", decode[shared.ErrorResponse](t, resp).Error)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	resp := api.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestHandler_LoopStopped(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, acceptAll)
	api.loop.Stop()

	resp := api.do(t, http.MethodGet, "/v1/panel", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStart_TimedOutRequestDoesNotStart(t *testing.T) {
	t.Parallel()

	api := newTestAPIWithTimeout(t, acceptAll, 20*time.Millisecond)
	block := make(chan struct{})
	require.True(t, api.loop.Post(func() { <-block }))

	resp := api.do(t, http.MethodPost, "/v1/retrievals/nfe", retrieval.NFeRequest{TaxID: "11222333000181"})
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	close(block)
	require.NoError(t, api.loop.Flush(t.Context()))
	assert.Equal(t, task.StateIdle, api.runner.State())
	_, running := api.runner.Current()
	assert.False(t, running)
}

func TestServe_ShutsDownWithContext(t *testing.T) {
	t.Parallel()

	ctx, stop := context.WithCancel(t.Context())
	addrs := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		errs <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)),
			func(addr net.Addr) { addrs <- addr.String() })
	}()

	var addr string
	select {
	case addr = <-addrs:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	stop()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &retrieval.ValidationError{Message: "CNPJ/CPF is required"}, http.StatusBadRequest, "CNPJ/CPF is required"},
		{"busy", action.ErrBusy, http.StatusConflict, "A download is already in progress"},
		{"nothing to cancel", ErrNothingToCancel, http.StatusConflict, "No download in progress"},
		{"stopped", dispatch.ErrStopped, http.StatusServiceUnavailable, "The application is shutting down"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "The application did not respond in time"},
		{"unknown", errors.New("open /home/joao/cert.pfx: permission denied"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.message, GetSafeErrorMessage(tt.err))
		})
	}
}
