package http

import (
	"errors"
	"net/http"

	"course-content-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// failWithError maps a service error onto the response envelope by kind.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		field := ve.Field
		if field == "" {
			field = "detail"
		}
		fail(c, http.StatusBadRequest, ErrValidation, ve.Error(), map[string]string{field: ve.Message})
	case errors.Is(err, domain.ErrValidation):
		fail(c, http.StatusBadRequest, ErrValidation, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		fail(c, http.StatusNotFound, ErrNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrForbiddenOperation):
		fail(c, http.StatusConflict, ErrActionForbidden, err.Error(), nil)
	case errors.Is(err, domain.ErrCredentialMissing):
		fail(c, http.StatusUnauthorized, ErrTokenRequired, "", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrTokenInvalid, "", nil)
	default:
		log.Error().Err(err).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		fail(c, http.StatusInternalServerError, ErrInternal, "", nil)
	}
}
