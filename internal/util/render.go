package util

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Render writes env as JSON. Success always follows the status code.
func Render(w http.ResponseWriter, status int, env Envelope) {
	env.Success = status < http.StatusBadRequest
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func OK(w http.ResponseWriter, data any) {
	Render(w, http.StatusOK, Envelope{Data: data})
}

func Fail(w http.ResponseWriter, status int, msg string) {
	Render(w, status, Envelope{Message: msg})
}
