package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/akicestmoi/auth-apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

var errInvalidAccountID = errors.New("invalid account id")

// AccountHandler translates HTTP requests into mutation core calls and
// maps outcomes onto the uniform envelope.
type AccountHandler struct {
	accountService *services.AccountService
	logger         *slog.Logger
}

// NewAccountHandler constructs a handler with the provided dependencies.
func NewAccountHandler(accountService *services.AccountService, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// AccountRouter registers every account route on the given router.
// Login and logout use POST; earlier revisions of the API accepted PATCH
// for both, POST is the one method supported now.
func AccountRouter(r chi.Router, accountService *services.AccountService, logger *slog.Logger) {
	handler := NewAccountHandler(accountService, logger)

	r.Get("/", handler.Base)
	r.Get("/home", handler.Home)
	r.Get("/db-content", handler.ShowDBContent)
	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/logout/{accountID}", handler.Logout)
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/", handler.GetAccount)
		r.Patch("/", handler.ModifyAccount)
		r.Put("/", handler.ResetOptionalFields)
		r.Delete("/", handler.DeleteAccount)
	})
}

// Base is the liveness probe.
func (h *AccountHandler) Base(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "The server is ready to be used")
}

// Home greets an authenticated caller.
func (h *AccountHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Welcome")
}

// ShowDBContent dumps every stored account, id ascending.
func (h *AccountHandler) ShowDBContent(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "get request failed")
		return
	}
	writeSuccess(w, http.StatusOK, accounts)
}

// GetAccount fetches a single account. The password hash is part of the
// payload, as in every revision of this API.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accountService.GetOne(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "account request failed")
		return
	}
	writeSuccess(w, http.StatusOK, account)
}

// Signup creates a new account from a free-form JSON payload.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.accountService.Signup(r.Context(), payload); err != nil {
		h.writeServiceError(w, err, "signup request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "signup success")
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and raises the session flag.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.accountService.Login(r.Context(), req.Username, req.Password); err != nil {
		h.writeServiceError(w, err, "login request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "login success")
}

// Logout lowers the session flag.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.accountService.Logout(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "logout request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "the account has been logged out")
}

// ModifyAccount applies a partial update from a free-form JSON payload.
func (h *AccountHandler) ModifyAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.accountService.PartialUpdate(r.Context(), id, payload); err != nil {
		h.writeServiceError(w, err, "update request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "the account has been updated")
}

// ResetOptionalFields nulls the optional fields. Takes no body.
func (h *AccountHandler) ResetOptionalFields(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.accountService.ResetOptionalFields(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "update request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "the account has been updated")
}

// DeleteAccount removes an account permanently.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accountService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete request failed")
		return
	}
	writeSuccess(w, http.StatusOK, "the account has been deleted")
}

// writeServiceError maps the mutation core taxonomy onto HTTP statuses:
// validation, conflict and auth errors are 400, not-found is 404, anything
// else is logged and answered with the generic fallback message and 500.
func (h *AccountHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var (
		validationErr *services.ValidationError
		conflictErr   *services.ConflictError
		authErr       *services.AuthError
		notFoundErr   *services.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		if validationErr.Violations != nil {
			writeFailure(w, http.StatusBadRequest, validationErr.Violations)
			return
		}
		writeFailure(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &conflictErr):
		writeFailure(w, http.StatusBadRequest, conflictErr.Message)
	case errors.As(err, &authErr):
		writeFailure(w, http.StatusBadRequest, authErr.Message)
	case errors.As(err, &notFoundErr):
		writeFailure(w, http.StatusNotFound, notFoundErr.Message)
	default:
		h.logger.Error("account operation failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, fallback)
	}
}
