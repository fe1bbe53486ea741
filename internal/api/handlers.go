package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haasonsaas/concierge/internal/guests"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// handleRegister accepts the website form. The body may be UTF-8 or
// Windows-1251 JSON; count and status are optional.
func (s *Server) handleRegister(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, CodeInvalidRequest, "request body too large", err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, CodeInvalidRequest, "could not read request body", err))
		return
	}

	reg, err := guests.Decode(body, guests.SourceAPI)
	if err != nil {
		abortWithError(c, registrationError(err))
		return
	}

	guest, err := s.guests.Register(c.Request.Context(), reg, guests.SourceAPI)
	if err != nil {
		abortWithError(c, registrationError(err))
		return
	}

	c.JSON(http.StatusCreated, envelope{Success: true, Data: guest})
}

func registrationError(err error) *HTTPError {
	var ve *guests.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewHTTPError(http.StatusBadRequest, CodeValidation, ve.Message, err)
	case errors.Is(err, guests.ErrMalformed):
		return NewHTTPError(http.StatusBadRequest, CodeInvalidRequest, "request body is not valid JSON", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "could not save the registration", err)
	}
}
