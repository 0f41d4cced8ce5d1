package api

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/gift-exchange/internal/apperr"
	"github.com/ignite/gift-exchange/internal/notify"
	"github.com/ignite/gift-exchange/internal/pkg/httputil"
	"github.com/ignite/gift-exchange/internal/pkg/logger"
	"github.com/ignite/gift-exchange/internal/raffle"
	"github.com/ignite/gift-exchange/internal/store"
)

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	service    *raffle.Service
	dispatcher *notify.Dispatcher
	store      store.Store
	redis      *redis.Client
	dedupTTL   int
}

// NewHandlers wires the handler set. The redis client is optional; without
// it webhook deduplication is skipped.
func NewHandlers(service *raffle.Service, dispatcher *notify.Dispatcher, st store.Store) *Handlers {
	return &Handlers{
		service:    service,
		dispatcher: dispatcher,
		store:      st,
	}
}

// SetRedisClient enables webhook deduplication.
func (h *Handlers) SetRedisClient(client *redis.Client, ttlSeconds int) {
	h.redis = client
	h.dedupTTL = ttlSeconds
}

// HealthCheck returns server health status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	httputil.JSON(w, status, payload)
}

var kindStatus = map[apperr.Kind]int{
	apperr.Unauthenticated:    http.StatusUnauthorized,
	apperr.InvalidArgument:    http.StatusBadRequest,
	apperr.PermissionDenied:   http.StatusForbidden,
	apperr.NotFound:           http.StatusNotFound,
	apperr.AlreadyExists:      http.StatusConflict,
	apperr.FailedPrecondition: http.StatusPreconditionFailed,
	apperr.Internal:           http.StatusInternalServerError,
}

// respondError maps classified service errors onto HTTP statuses. Internal
// causes are logged, never returned to the client.
func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if kind == apperr.Internal {
		logger.Error("request failed", "error", err.Error())
	}
	httputil.Error(w, status, apperr.MessageOf(err), kind.String())
}

func decodeBody(r *http.Request, dst any) error {
	if err := httputil.Decode(r, dst); err != nil {
		return apperr.New(apperr.InvalidArgument, "invalid JSON body")
	}
	return nil
}
