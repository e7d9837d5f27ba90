package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/rs/zerolog/log"
)

// CodeOK is the code of every successful response.
const CodeOK = "OK"

// Envelope is the body of every response.
type Envelope struct {
	Code    string      `json:"code"`
	Remarks string      `json:"remarks"`
	Result  interface{} `json:"result,omitempty"`
}

func respond(c *gin.Context, status int, code, remarks string, result interface{}) {
	c.JSON(status, Envelope{Code: code, Remarks: remarks, Result: result})
}

func ok(c *gin.Context, remarks string, result interface{}) {
	respond(c, http.StatusOK, CodeOK, remarks, result)
}

func created(c *gin.Context, remarks string, result interface{}) {
	respond(c, http.StatusCreated, CodeOK, remarks, result)
}

// fail writes err as an envelope. Internal causes are logged, never sent.
func fail(c *gin.Context, err error) {
	e := apperr.From(err)

	if e.Kind == apperr.KindInternal {
		log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Str("path", c.FullPath()).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("request rejected")
	}

	_ = c.Error(err)
	respond(c, e.Kind.HTTPStatus(), e.Kind.Code(), e.Remark, nil)
	c.Abort()
}

// bind decodes the JSON body into dst. Unknown fields and a missing body are
// validation errors.
func bind(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body is too large")
		}

		return apperr.Validation("invalid request body: %v", err)
	}

	return nil
}
