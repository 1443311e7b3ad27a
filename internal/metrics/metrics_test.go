package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/posts/{id}", "418"))
	if got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.SessionEvent("issued")
	m.SessionEvent("issued")
	m.NotificationCreated("follow")

	if v := testutil.ToFloat64(m.sessions.WithLabelValues("issued")); v != 2 {
		t.Fatalf("sessions issued = %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `socialnet_notifications_created_total{kind="follow"} 1`) {
		t.Fatalf("metrics output missing notification counter")
	}
}
