package httpx

import (
	"encoding/json"
	"net/http"

	"socialnet/internal/service"
	"socialnet/internal/util"
)

const maxBodyBytes = 1 << 20

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.WithError(err).WithField("request_id", requestIDFrom(r.Context())).Error("request failed")
		}
		util.Fail(w, status, service.MessageOf(err))
	})
}

func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindOwnership:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func badRequest(msg string, err error) error {
	return &service.Error{Kind: service.KindValidation, Message: msg, Err: err}
}

func decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, badRequest("malformed JSON body", err)
	}
	return v, nil
}

func query(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", badRequest(key+" is required", nil)
	}
	return v, nil
}
