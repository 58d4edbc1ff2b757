package controller

import (
	"net/http"

	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// SuccessResponse is the envelope for successful responses.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorResponse is the envelope for failed responses.
type ErrorResponse struct {
	Success   bool                   `json:"success"`
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Success sends a 200 response wrapping data in the standard envelope.
func Success(c router.Context, data interface{}) error {
	return c.JSON(http.StatusOK, SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c.Request().Context()),
	})
}

// Created sends a 201 response wrapping data in the standard envelope.
func Created(c router.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c.Request().Context()),
	})
}

// NoContent sends a 204 response with no body.
func NoContent(c router.Context) error {
	return c.JSON(http.StatusNoContent, nil)
}

// Error maps err to a status code and envelope and sends it.
func Error(c router.Context, err error) error {
	requestID := middleware.GetRequestID(c.Request().Context())
	status, body := MapError(requestID, err)
	return c.JSON(status, body)
}
