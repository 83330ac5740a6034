// Package api serves the operator HTTP endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
	"github.com/ethpandaops/tx-event-processor/pkg/processor"
	"github.com/ethpandaops/tx-event-processor/pkg/state"
)

const maxInvalidateKeys = 1000

type StatusProvider interface {
	Status() processor.Status
}

type CursorLister interface {
	Cursors() []state.Cursor
}

type Dependencies struct {
	Processor   StatusProvider
	Cursors     CursorLister
	Nfts        processor.NftReader
	Jobs        processor.JobSubmitter
	Invalidator processor.KeyInvalidator
	Inspector   nftqueue.QueueInspector
	Queue       string
}

type Handler struct {
	log  logrus.FieldLogger
	deps Dependencies
}

func NewHandler(log logrus.FieldLogger, deps Dependencies) *Handler {
	return &Handler{
		log:  log.WithField("component", "api"),
		deps: deps,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", h.status)
	mux.HandleFunc("GET /api/v1/cursors", h.cursors)

	if h.deps.Nfts != nil && h.deps.Jobs != nil {
		mux.HandleFunc("POST /api/v1/nfts/{identifier}/process", h.processNft)
	}

	if h.deps.Invalidator != nil {
		mux.HandleFunc("POST /api/v1/cache/invalidate", h.invalidate)
	}
}

type StatusResponse struct {
	processor.Status
	Queue *nftqueue.QueueStats `json:"queue,omitempty"`
}

type CursorsResponse struct {
	Cursors []state.Cursor `json:"cursors"`
}

type ProcessNftResponse struct {
	Status     string `json:"status"`
	Identifier string `json:"identifier"`
	Queue      string `json:"queue"`
}

type InvalidateRequest struct {
	Keys []string `json:"keys"`
}

type InvalidateResponse struct {
	Status string `json:"status"`
	Keys   int    `json:"keys"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Identifier string `json:"identifier,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Status: h.deps.Processor.Status()}

	if h.deps.Inspector != nil && h.deps.Queue != "" {
		stats, err := nftqueue.CollectQueueStats(h.deps.Inspector, h.deps.Queue)
		if err != nil {
			h.log.WithError(err).Debug("Queue stats unavailable")
		} else {
			resp.Queue = stats
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cursors(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, CursorsResponse{Cursors: h.deps.Cursors.Cursors()})
}

// processNft re-submits an NFT for processing with a metadata refresh.
func (h *Handler) processNft(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	ctx := r.Context()

	nft, err := h.deps.Nfts.GetNft(ctx, identifier)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "failed to fetch nft", identifier)

		return
	}

	if nft == nil {
		h.writeError(w, http.StatusNotFound, "nft not found", identifier)

		return
	}

	err = h.deps.Jobs.Submit(ctx, nft, nftqueue.Settings{ForceRefreshMetadata: true})

	switch {
	case errors.Is(err, nftqueue.ErrInvalidNft):
		h.writeError(w, http.StatusBadRequest, err.Error(), identifier)

		return
	case err != nil:
		h.log.WithError(err).WithField("identifier", identifier).Error("Failed to queue nft")
		h.writeError(w, http.StatusInternalServerError, "failed to queue nft", identifier)

		return
	}

	h.writeJSON(w, http.StatusOK, ProcessNftResponse{
		Status:     "queued",
		Identifier: identifier,
		Queue:      h.deps.Queue,
	})
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", "")

		return
	}

	if len(req.Keys) == 0 {
		h.writeError(w, http.StatusBadRequest, "keys are required", "")

		return
	}

	if len(req.Keys) > maxInvalidateKeys {
		h.writeError(w, http.StatusBadRequest, "too many keys", "")

		return
	}

	if err := h.deps.Invalidator.Broadcast(r.Context(), req.Keys); err != nil {
		h.log.WithError(err).Error("Manual invalidation failed")
		h.writeError(w, http.StatusInternalServerError, "failed to invalidate keys", "")

		return
	}

	h.writeJSON(w, http.StatusOK, InvalidateResponse{Status: "invalidated", Keys: len(req.Keys)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, identifier string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Identifier: identifier})
}
