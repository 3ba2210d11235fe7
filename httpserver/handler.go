package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/context-factory/api"
	"github.com/ruteri/context-factory/factory"
	"github.com/ruteri/context-factory/interfaces"
)

const (
	// maxBodySize is the maximum allowed structured request body size (1MB).
	maxBodySize = 1024 * 1024

	// DefaultMaxPayloadSize caps raw payload uploads (16MB).
	DefaultMaxPayloadSize = 16 * 1024 * 1024
)

// Handler processes HTTP requests for the context factory. It exposes the
// payload store and the provisioning protocol.
type Handler struct {
	factory        *factory.Factory
	maxPayloadSize int64
	log            *slog.Logger
}

// NewHandler creates a new HTTP request handler around a factory.
func NewHandler(f *factory.Factory, log *slog.Logger) *Handler {
	return &Handler{
		factory:        f,
		maxPayloadSize: DefaultMaxPayloadSize,
		log:            log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/admin/payload", h.HandleReplacePayload)
	r.Get("/api/public/payload", h.HandleReadPayload)
	r.Get("/api/public/info", h.HandleInfo)
	r.Post("/api/public/provision/{short_name}", h.HandleProvision)
}

// HandleReplacePayload replaces the stored payload.
//
// URL format: POST /api/admin/payload
//
// The request body is the payload itself, verbatim. Accepting the bytes as
// the call's unstructured body instead of a field in a JSON document avoids
// deserializing an arbitrarily large blob; callers must not wrap the bytes
// in any envelope. Caller identity comes from the X-Caller-Identity header
// and must be the factory's own identity.
func (h *Handler) HandleReplacePayload(w http.ResponseWriter, r *http.Request) {
	caller, err := callerIdentity(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, err)
		return
	}

	newCode, err := io.ReadAll(io.LimitReader(r.Body, h.maxPayloadSize+1))
	if err != nil {
		h.log.Error("Failed to read request body", "err", err)
		h.writeError(w, http.StatusBadRequest, errors.New("failed to read request body"))
		return
	}
	if int64(len(newCode)) > h.maxPayloadSize {
		h.writeError(w, http.StatusRequestEntityTooLarge, errors.New("payload exceeds maximum size"))
		return
	}

	store := h.factory.Store()
	if err := store.Replace(r.Context(), caller, newCode); err != nil {
		h.log.Info("Payload replacement rejected", "err", err, "caller", caller.String())
		switch {
		case errors.Is(err, interfaces.ErrUnauthorized):
			h.writeError(w, http.StatusForbidden, err)
		case errors.Is(err, interfaces.ErrEmptyPayload):
			h.writeError(w, http.StatusBadRequest, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	digest := store.Digest()
	h.writeJSON(w, http.StatusOK, api.PayloadInfo{Digest: digest[:], Size: store.Size()})
}

// HandleReadPayload returns the current payload bytes verbatim.
//
// URL format: GET /api/public/payload
func (h *Handler) HandleReadPayload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(h.factory.Store().Bytes())
}

// HandleInfo returns the factory's public parameters, including the deposit
// currently required to provision a child.
//
// URL format: GET /api/public/info
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	store := h.factory.Store()
	accountant := h.factory.Accountant()
	digest := store.Digest()

	h.writeJSON(w, http.StatusOK, api.InfoResponse{
		FactoryID:      h.factory.Identity().String(),
		PayloadSize:    store.Size(),
		PayloadDigest:  digest[:],
		CostPerByte:    accountant.CostPerByte(),
		MinimumDeposit: accountant.MinimumDeposit(store.Size()),
	})
}

// HandleProvision dispatches a child provisioning batch.
//
// URL format: POST /api/public/provision/{short_name}
//
// Request body: JSON, see api.ProvisionRequest. Open to any caller carrying
// an identity header. Responds 202 on dispatch; the batch outcome is
// asynchronous and reported through reconciliation records.
func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	requester, err := callerIdentity(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, err)
		return
	}

	var wireReq api.ProvisionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&wireReq); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	req := interfaces.ProvisionRequest{
		ShortName:         chi.URLParam(r, "short_name"),
		BeneficiaryParams: wireReq.BeneficiaryParams,
		AttachedFunds:     wireReq.AttachedFunds,
		Requester:         requester,
	}
	if wireReq.PublicKey != "" {
		cred, err := interfaces.NewCredentialFromHex(wireReq.PublicKey)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Credential = cred
	}

	handle, err := h.factory.Provision(r.Context(), req)
	if err != nil {
		var insufficientErr *interfaces.InsufficientFundsError
		switch {
		case errors.Is(err, interfaces.ErrInvalidName):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.As(err, &insufficientErr):
			required := insufficientErr.Required
			h.writeJSON(w, http.StatusPaymentRequired, api.ErrorResponse{
				Error:    insufficientErr.Error(),
				Required: &required,
			})
		default:
			h.log.Error("Provisioning dispatch failed", "err", err, "requester", requester.String())
			h.writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, api.ProvisionResponse{
		BatchID:   handle.ID.String(),
		ChildName: handle.Target.String(),
	})
}

// callerIdentity extracts and validates the caller's context name from the
// identity header.
func callerIdentity(r *http.Request) (interfaces.ContextName, error) {
	raw := r.Header.Get(api.CallerIdentityHeader)
	if raw == "" {
		return "", errors.New("missing caller identity header")
	}
	return interfaces.NewContextName(raw)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
