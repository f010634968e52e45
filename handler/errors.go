package handler

import (
	"encoding/json"
	"net/http"

	"shop-inventory/service"
)

// errorBody is the payload of every failed request.
type errorBody struct {
	StatusCode  int    `json:"status_code"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{StatusCode: code, Description: msg})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindInvalidID:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInsufficientStock:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeServiceErr maps a Coordinator error to its status. Internal causes are never sent.
func writeServiceErr(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(service.KindOf(err)), service.Describe(err))
}
