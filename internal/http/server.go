package httpx

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"socialnet/internal/auth"
	"socialnet/internal/metrics"
	"socialnet/internal/service"
	"socialnet/internal/util"
)

const (
	apiPrefix   = "/api/v1"
	tokenHeader = "token"
)

type Options struct {
	RequestTimeout time.Duration
	// AuthRate and AuthBurst bound register and login attempts per client IP.
	AuthRate  float64
	AuthBurst int
}

type Server struct {
	svc      *service.Service
	sessions *auth.Sessions
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	opts     Options
	limiter  *rateLimiter
	router   *mux.Router
	handler  http.Handler
}

type policy int

const (
	public policy = iota
	// optional verifies a token only when one is sent.
	optional
	required
)

type route struct {
	method  string
	path    string
	policy  policy
	limited bool
	handle  handlerFunc
}

func NewServer(svc *service.Service, sessions *auth.Sessions, m *metrics.Metrics, log logrus.FieldLogger, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	s := &Server{
		svc:      svc,
		sessions: sessions,
		metrics:  m,
		log:      log,
		opts:     opts,
		limiter:  newRateLimiter(opts.AuthRate, opts.AuthBurst),
		router:   mux.NewRouter(),
	}

	s.router.Use(m.Middleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		util.Fail(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		util.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		util.OK(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := s.router.PathPrefix(apiPrefix).Subrouter()
	for _, rt := range s.routes() {
		var h http.Handler = s.wrap(rt.handle)
		h = s.gate(rt.policy, h)
		if rt.limited {
			h = s.limiter.Handler(h)
		}
		api.Handle(rt.path, h).Methods(rt.method)
	}

	s.handler = withRequestID(s.withAccessLog(s.withRecover(withCORS(WithTimeout(s.router, opts.RequestTimeout)))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

func (s *Server) routes() []route {
	return []route{
		{http.MethodPost, "/register", public, true, s.handleRegister},
		{http.MethodPost, "/login", public, true, s.handleLogin},
		{http.MethodPost, "/logout", required, false, s.handleLogout},

		{http.MethodPost, "/users/follow", required, false, s.handleFollow},
		{http.MethodPost, "/users/unfollow", required, false, s.handleUnfollow},
		{http.MethodGet, "/users/followees", required, false, s.handleFollowees},
		{http.MethodGet, "/users/followers", required, false, s.handleFollowers},
		{http.MethodPost, "/users/search", required, false, s.handleSearchUsers},
		{http.MethodGet, "/users/profile/", optional, false, s.handleProfile},
		{http.MethodGet, "/users/notifications", required, false, s.handleNotifications},
		{http.MethodPost, "/users/notifications/allRead", required, false, s.handleMarkAllRead},
		{http.MethodGet, "/users/recommendations", required, false, s.handleRecommendations},
		{http.MethodDelete, "/users/", required, false, s.handleDeleteUser},

		{http.MethodPost, "/profile/updateName", required, false, s.handleUpdateName},
		{http.MethodPost, "/profile/updatePassword", required, true, s.handleUpdatePassword},

		{http.MethodPost, "/post", required, false, s.handleCreatePost},
		{http.MethodPost, "/post/like", required, false, s.handleLike},
		{http.MethodPost, "/post/unlike", required, false, s.handleUnlike},
		{http.MethodGet, "/post/view", optional, false, s.handleViewPost},
		{http.MethodPost, "/post/allFromUser", required, false, s.handlePostsFromUser},
		{http.MethodDelete, "/posts/", required, false, s.handleDeletePost},
		{http.MethodGet, "/posts/search", required, false, s.handleSearchPosts},
		{http.MethodPost, "/posts/report", required, false, s.handleReport},

		{http.MethodGet, "/comments/", required, false, s.handleComments},
		{http.MethodPost, "/comment/", required, false, s.handleCreateComment},

		{http.MethodGet, "/feed", required, false, s.handleFeed},
	}
}
