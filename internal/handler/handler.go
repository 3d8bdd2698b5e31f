package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zeebo/errs"

	"github.com/ktb-community/board/internal/response"
	"github.com/ktb-community/board/internal/service"
)

// maxJSONBody caps decoded request bodies.
const maxJSONBody = 1 << 20

// writeError maps a service error class to an HTTP status. Unclassified
// errors are logged and reported as 500.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, "invalid email or password")
	case service.ValidationError.Has(err):
		response.BadRequest(w, unwrapMessage(err))
	case service.NotFoundError.Has(err):
		response.NotFound(w, unwrapMessage(err))
	case service.ConflictError.Has(err):
		response.Conflict(w, unwrapMessage(err))
	case service.ForbiddenError.Has(err):
		response.Forbidden(w, unwrapMessage(err))
	case service.StorageError.Has(err):
		log.Error("storage failure", "error", err)
		response.Error(w, http.StatusBadGateway, "object storage unavailable")
	default:
		log.Error("request failed", "error", err)
		response.InternalError(w)
	}
}

// unwrapMessage drops the outermost class prefix and keeps the rest of the
// message, including any wrapped detail.
func unwrapMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(errs.Namer); !ok {
			continue
		}
		if inner := errors.Unwrap(e); inner != nil {
			return inner.Error()
		}
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}
