// Package rankingtest provides a stub ranking service for tests and local development.
//
// The stub does not rank anything by itself. By default it echoes the offered hosts in the order they
// were sent; tests replace the behavior with SetHandler, SetRawResponse, or RespondWith.
package rankingtest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scusemua/offer-ranking/common/ranking"
	"go.uber.org/atomic"
)

const (
	RankRoute    = "/rank"
	VersionRoute = "/version"
)

// Handler produces the status and body of the response to a ranking request.
type Handler func(request *ranking.Request) (status int, body any)

// Reply is the JSON body of a well-formed response of the ranking service.
type Reply struct {
	Error string   `json:"error"`
	Hosts []string `json:"hosts"`
}

// EchoHandler ranks the hosts in the order in which they were sent.
func EchoHandler(request *ranking.Request) (int, any) {
	hosts := make([]string, 0, len(request.Hosts))
	for _, host := range request.Hosts {
		hosts = append(hosts, host.Name)
	}

	return http.StatusOK, &Reply{Error: "", Hosts: hosts}
}

// Server is a stub ranking service.
type Server struct {
	log logger.Logger

	engine  *gin.Engine
	version string

	mu          sync.Mutex
	handler     Handler
	delay       time.Duration
	lastRequest *ranking.Request
	numRequests *atomic.Int64
}

// NewServer creates a new Server that echoes requests.
func NewServer(version string) *Server {
	server := &Server{
		engine:      gin.New(),
		version:     version,
		handler:     EchoHandler,
		numRequests: atomic.NewInt64(0),
	}
	config.InitLogger(&server.log, server)

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.log.Debug("Setting up stub ranking service routes.")

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.Default())

	s.engine.GET(VersionRoute, s.Version)
	// Ranking requests are accepted on any path so that tests can point an offer set at any URL of the server.
	s.engine.POST("/*path", s.Rank)
}

// Handler returns the http.Handler of the service.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetHandler replaces the behavior of the service.
func (s *Server) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}

// SetDelay makes the service wait for the given duration before responding.
func (s *Server) SetDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delay = delay
}

// RespondWith makes the service reply with the given error message and hosts.
func (s *Server) RespondWith(errorMessage string, hosts ...string) {
	if hosts == nil {
		hosts = []string{}
	}

	s.SetHandler(func(*ranking.Request) (int, any) {
		return http.StatusOK, &Reply{Error: errorMessage, Hosts: hosts}
	})
}

// SetRawResponse makes the service reply with the given status and verbatim body.
func (s *Server) SetRawResponse(status int, body string) {
	s.SetHandler(func(*ranking.Request) (int, any) {
		return status, []byte(body)
	})
}

// NumRequests returns the number of ranking requests received so far.
func (s *Server) NumRequests() int64 {
	return s.numRequests.Load()
}

// LastRequest returns the most recent well-formed ranking request, or nil.
func (s *Server) LastRequest() *ranking.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastRequest
}

func (s *Server) Version(ctx *gin.Context) {
	_, _ = fmt.Fprint(ctx.Writer, s.version)
}

func (s *Server) Rank(ctx *gin.Context) {
	s.numRequests.Inc()

	var request ranking.Request
	if err := ctx.ShouldBindJSON(&request); err != nil {
		s.log.Error("Failed to extract ranking request: %v", err)
		ctx.JSON(http.StatusOK, &Reply{Error: err.Error(), Hosts: []string{}})
		return
	}

	s.log.Debug("Received ranking request %s with %d host(s).", request.JobKey, len(request.Hosts))

	s.mu.Lock()
	s.lastRequest = &request
	handler := s.handler
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Request.Context().Done():
			return
		}
	}

	status, body := handler(&request)
	if raw, ok := body.([]byte); ok {
		ctx.Data(status, ranking.ContentTypeHeader, raw)
		return
	}

	ctx.JSON(status, body)
}

// Serve listens on the given port until the listener fails.
func (s *Server) Serve(port int) error {
	address := fmt.Sprintf(":%d", port)
	s.log.Debug("Stub ranking service v%s is starting to listen on port %d", s.version, port)

	return http.ListenAndServe(address, s.engine)
}
