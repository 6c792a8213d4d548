package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/api/shared"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/retrieval"
	"github.com/autonfe/desk/internal/task"
)

// HandlerConfig holds the collaborators of a RetrievalHandler
type HandlerConfig struct {
	Dispatcher dispatch.Dispatcher
	Machine    *action.Machine
	Center     *notify.Center
	Client     retrieval.Client

	// ValidateNFe defaults to retrieval.ValidateNFe, which opens the certificate
	ValidateNFe func(req retrieval.NFeRequest) error

	// InvokeTimeout bounds each round trip to the UI context
	InvokeTimeout time.Duration

	Logger *slog.Logger
}

// RetrievalHandler serves the retrieval control endpoints.
type RetrievalHandler struct {
	dispatcher    dispatch.Dispatcher
	machine       *action.Machine
	center        *notify.Center
	client        retrieval.Client
	validateNFe   func(req retrieval.NFeRequest) error
	invokeTimeout time.Duration
	logger        *slog.Logger
}

// StartResponse is returned by the start endpoints.
type StartResponse struct {
	Panel action.Panel `json:"panel"`
}

// NewRetrievalHandler creates a RetrievalHandler.
func NewRetrievalHandler(config HandlerConfig) *RetrievalHandler {
	if config.ValidateNFe == nil {
		config.ValidateNFe = retrieval.ValidateNFe
	}
	if config.InvokeTimeout <= 0 {
		config.InvokeTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RetrievalHandler{
		dispatcher:    config.Dispatcher,
		machine:       config.Machine,
		center:        config.Center,
		client:        config.Client,
		validateNFe:   config.ValidateNFe,
		invokeTimeout: config.InvokeTimeout,
		logger:        config.Logger.With("component", "retrieval_handler"),
	}
}

// StartNFe handles POST /v1/retrievals/nfe.
func (h *RetrievalHandler) StartNFe(w http.ResponseWriter, r *http.Request) {
	var req retrieval.NFeRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, h.logger, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	validationErr := h.validateNFe(req)
	h.start(w, r, retrieval.NewNFeJob(h.client, req), validationErr)
}

// StartNFSe handles POST /v1/retrievals/nfse.
func (h *RetrievalHandler) StartNFSe(w http.ResponseWriter, r *http.Request) {
	var req retrieval.NFSeRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, h.logger, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	validationErr := req.Validate()
	h.start(w, r, retrieval.NewNFSeJob(h.client, req), validationErr)
}

// start runs validation off the UI context and hands the verdict to the
// machine, which shows it as a toast when it fails. When the UI context does
// not pick the request up within the invoke timeout, the start is skipped
// and the client gets 504.
func (h *RetrievalHandler) start(w http.ResponseWriter, r *http.Request, job task.Job, validationErr error) {
	var (
		startErr error
		panel    action.Panel
	)
	err := h.invoke(r.Context(), func() {
		startErr = h.machine.Start(job, func() error { return validationErr })
		panel = h.machine.Panel()
	})
	if err == nil {
		err = startErr
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.logger.Info("retrieval started over API", "job", job.Name())
	shared.RespondWithJSON(w, http.StatusAccepted, StartResponse{Panel: panel})
}

// Cancel handles DELETE /v1/retrievals/current.
func (h *RetrievalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var (
		panel   action.Panel
		running bool
	)
	err := h.invoke(r.Context(), func() {
		running = h.machine.Panel().Phase == action.PhaseRunning
		h.machine.Cancel()
		panel = h.machine.Panel()
	})
	if err == nil && !running {
		err = ErrNothingToCancel
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusAccepted, panel)
}

// GetPanel handles GET /v1/panel.
func (h *RetrievalHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	var panel action.Panel
	if err := h.invoke(r.Context(), func() { panel = h.machine.Panel() }); err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, panel)
}

// GetToasts handles GET /v1/toasts.
func (h *RetrievalHandler) GetToasts(w http.ResponseWriter, r *http.Request) {
	var toasts []notify.Toast
	if err := h.invoke(r.Context(), func() { toasts = h.center.Active() }); err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, toasts)
}

func (h *RetrievalHandler) invoke(ctx context.Context, fn func()) error {
	ctx, cancel := context.WithTimeout(ctx, h.invokeTimeout)
	defer cancel()
	return dispatch.Invoke(ctx, h.dispatcher, fn)
}

func (h *RetrievalHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	var logged error
	if !errors.Is(err, action.ErrBusy) {
		logged = err
	}
	shared.RespondWithError(w, r, h.logger, status, GetSafeErrorMessage(err), logged)
}
