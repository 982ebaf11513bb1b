package httpapi

import (
	goerrors "errors"
	"net/http"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/httputil"
	"github.com/Danejw/viewbait/internal/middleware"
)

// envelope wraps a resource payload under its JSON key, matching the
// `{resource}` / `{resources: [...]}` response convention.
func envelope(key string, v interface{}) map[string]interface{} {
	return map[string]interface{}{key: v}
}

// writeError translates service and database errors into API responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case database.IsNotFound(err):
		httputil.NotFound(w, "")
		return
	case goerrors.Is(err, database.ErrInvalidInput):
		httputil.BadRequest(w, "Invalid request")
		return
	}

	if serviceErr := errors.GetServiceError(err); serviceErr != nil {
		httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
		if serviceErr.HTTPStatus >= http.StatusInternalServerError {
			s.logger.WithContext(r.Context()).WithError(err).Error("Request failed")
		}
		return
	}

	s.logger.WithContext(r.Context()).WithError(err).Error("Request failed")
	httputil.InternalError(w, "")
}

// requireUser extracts the authenticated user id. The auth middleware
// guarantees it for protected routes; an empty id means the route was
// reached without auth.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return "", false
	}
	return userID, true
}
