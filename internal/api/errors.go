package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"commute-api/internal/schedule"
)

const msgEmployeeNotFound = "직원을 찾을 수 없습니다."

type detailBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// errBadRequest marks malformed bodies and path parameters.
var errBadRequest = errors.New("bad request")

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailBody{Detail: detail})
}

// handleServiceError maps scheduling errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	var mismatch *schedule.OrderMismatchError
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, schedule.ErrEmployeeNotFound):
		writeJSON(w, http.StatusNotFound, messageBody{Message: msgEmployeeNotFound})
	case errors.As(err, &mismatch):
		writeDetail(w, http.StatusBadRequest, mismatch.Error())
	case errors.Is(err, schedule.ErrInvalidDate):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid), errors.Is(err, errBadRequest):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("Schedule request failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
