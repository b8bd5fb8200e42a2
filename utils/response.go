package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-api/errs"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SendError(c *gin.Context, status int, err string) {
	c.JSON(status, ErrorResponse{
		Error: err,
		Code:  status,
	})
}

func SendValidationError(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Message: err,
		Kind:    string(errs.KindValidation),
		Code:    http.StatusBadRequest,
	})
}

// StatusFor maps an error kind onto the HTTP status the API answers with.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindAuthentication:
		return http.StatusUnauthorized
	case errs.KindRegistration, errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindDuplicateRequest, errs.KindConflict:
		return http.StatusConflict
	case errs.KindSend, errs.KindUpload, errs.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SendAppError answers with the status and user facing message of a
// classified error. The underlying cause is never written to the client.
func SendAppError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := StatusFor(kind)
	message := errs.Message(err)
	if _, ok := err.(*errs.Error); !ok && kind == errs.KindTransport {
		message = "The service is temporarily unavailable"
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Kind:    string(kind),
		Code:    status,
	})
}

func SendSuccess(c *gin.Context, message string, data interface{}) {
	response := SuccessResponse{
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(http.StatusOK, response)
}

func SendCreated(c *gin.Context, message string, data interface{}) {
	response := SuccessResponse{
		Message: message,
		Data:    data,
	}
	c.JSON(http.StatusCreated, response)
}
