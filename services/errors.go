package services

import "github.com/gofiber/fiber/v2"

// EngineError carries the HTTP status a business failure maps to, so handlers
// never have to string-match messages.
type EngineError struct {
	Status  int
	Message string
}

func (e *EngineError) Error() string { return e.Message }

func errBadRequest(msg string) *EngineError {
	return &EngineError{Status: fiber.StatusBadRequest, Message: msg}
}

func errInternal(msg string) *EngineError {
	return &EngineError{Status: fiber.StatusInternalServerError, Message: msg}
}
