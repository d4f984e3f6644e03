// services/settlement-service/internal/handler/http/handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/auth"
	shipmentapp "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/shipment"
	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/roleproof"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/shipment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CallerHeader carries the caller identity, set by the upstream gateway.
const CallerHeader = "X-Caller-Identity"

type Sessions interface {
	Authenticate(ctx context.Context, caller string, proof roleproof.RoleProof) error
	Logout(ctx context.Context, caller string) error
}

type Shipments interface {
	CreateShipment(ctx context.Context, caller string, in shipmentapp.CreateShipmentInput) (shipment.View, error)
	GetShipment(ctx context.Context, caller string, id uint64) (shipment.View, error)
	ListShipments(ctx context.Context, caller string) ([]shipment.View, error)
	SetShipmentDetails(ctx context.Context, caller string, id uint64, d shipmentapp.Details) (shipment.View, error)
	EvaluateSample(ctx context.Context, caller string, id uint64, status shipment.EvaluationStatus) (shipment.View, error)
	EvaluateShipmentDetails(ctx context.Context, caller string, id uint64, status shipment.EvaluationStatus) (shipment.View, error)
	EvaluateQuality(ctx context.Context, caller string, id uint64, status shipment.EvaluationStatus) (shipment.View, error)
	AddDocument(ctx context.Context, caller string, id uint64, in shipmentapp.AddDocumentInput) (shipment.View, uuid.UUID, error)
	EvaluateDocument(ctx context.Context, caller string, id uint64, docID uuid.UUID, status shipment.EvaluationStatus) (shipment.View, error)
	LockFunds(ctx context.Context, caller string, id uint64) (shipment.View, bool, error)
	ReleaseFunds(ctx context.Context, caller string, id uint64) (shipment.View, error)
}

type Handler struct {
	sessions  Sessions
	shipments Shipments
	log       logrus.FieldLogger
}

func New(sessions Sessions, shipments Shipments, log logrus.FieldLogger) *Handler {
	return &Handler{sessions: sessions, shipments: shipments, log: log.WithField("component", "http")}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(api chi.Router) {
		api.Use(requireCaller)

		api.Post("/auth/login", h.login)
		api.Post("/auth/logout", h.logout)

		api.Route("/shipments", func(sr chi.Router) {
			sr.Get("/", h.listShipments)
			sr.Post("/", h.createShipment)
			sr.Route("/{id}", func(one chi.Router) {
				one.Get("/", h.getShipment)
				one.Put("/details", h.setDetails)
				one.Post("/sample-evaluation", h.evaluation(h.shipments.EvaluateSample))
				one.Post("/details-evaluation", h.evaluation(h.shipments.EvaluateShipmentDetails))
				one.Post("/quality-evaluation", h.evaluation(h.shipments.EvaluateQuality))
				one.Post("/documents", h.addDocument)
				one.Post("/documents/{documentId}/evaluation", h.evaluateDocument)
				one.Post("/funds/lock", h.lockFunds)
				one.Post("/funds/release", h.releaseFunds)
			})
		})
	})
	return r
}

type callerKey struct{}

func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller == "" {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing "+CallerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) string {
	c, _ := r.Context().Value(callerKey{}).(string)
	return c
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

func shipmentID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domainErr.ErrInvalidInput
	}
	return id, nil
}

// --- auth ---

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var proof roleproof.RoleProof
	if err := readJSON(r, &proof); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if err := h.sessions.Authenticate(r.Context(), callerFrom(r), proof); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), callerFrom(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- shipments ---

func (h *Handler) listShipments(w http.ResponseWriter, r *http.Request) {
	views, err := h.shipments.ListShipments(r.Context(), callerFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": views})
}

func (h *Handler) createShipment(w http.ResponseWriter, r *http.Request) {
	var in shipmentapp.CreateShipmentInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	v, err := h.shipments.CreateShipment(r.Context(), callerFrom(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.shipments.GetShipment(r.Context(), callerFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) setDetails(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var d shipmentapp.Details
	if err := readJSON(r, &d); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	v, err := h.shipments.SetShipmentDetails(r.Context(), callerFrom(r), id, d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type evaluationRequest struct {
	Status shipment.EvaluationStatus `json:"status"`
}

type evaluateFunc func(ctx context.Context, caller string, id uint64, status shipment.EvaluationStatus) (shipment.View, error)

func (h *Handler) evaluation(evaluate evaluateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := shipmentID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var req evaluationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
			return
		}
		v, err := evaluate(r.Context(), callerFrom(r), id, req.Status)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) addDocument(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in shipmentapp.AddDocumentInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	v, docID, err := h.shipments.AddDocument(r.Context(), callerFrom(r), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"documentId": docID, "shipment": v})
}

func (h *Handler) evaluateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "documentId"))
	if err != nil {
		h.fail(w, r, domainErr.ErrInvalidInput)
		return
	}
	var req evaluationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	v, err := h.shipments.EvaluateDocument(r.Context(), callerFrom(r), id, docID, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) lockFunds(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, locked, err := h.shipments.LockFunds(r.Context(), callerFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locked": locked, "shipment": v})
}

func (h *Handler) releaseFunds(w http.ResponseWriter, r *http.Request) {
	id, err := shipmentID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.shipments.ReleaseFunds(r.Context(), callerFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// fail maps a domain error through the gRPC status mapping onto an HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := httpStatus(auth.MapError(err))
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"caller":     callerFrom(r),
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, r, status, code, msg)
}
