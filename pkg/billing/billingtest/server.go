// Package billingtest runs an in-process billing service for tests.
package billingtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tableflip.dev/wbc/pkg/billing"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/task"
)

// Request is one call the server received.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	IdempotencyKey string
}

// Fixture is the data the server answers with.
type Fixture struct {
	Schemes     []location.Scheme
	Connections []connection.Connection
	TaskTypes   []task.Type
	Assignees   []task.Assignee
	Tasks       []task.Task
	// Session, when set, is required as the session cookie.
	Session string
}

// Server is a fake billing service backed by a gin engine.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	fixture  Fixture
	fail     map[string]int
	failOnce map[string]int
	requests []Request
	created  []task.CreateRequest
	keys     map[string]task.Task
	down     bool
}

// New starts a server. Close it when done.
func New(f Fixture) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		fixture:  f,
		fail:     map[string]int{},
		failOnce: map[string]int{},
		keys:     map[string]task.Task{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// Client returns a billing client pointed at s with the fixture session.
func (s *Server) Client() *billing.Client {
	c, err := billing.New(billing.Config{BaseURL: s.URL, Session: s.fixture.Session})
	if err != nil {
		panic(err)
	}
	return c
}

// FailTarget makes every create for the target id answer with status.
func (s *Server) FailTarget(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[id] = status
}

// FailTargetOnce makes the next create for the target id answer with status.
func (s *Server) FailTargetOnce(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnce[id] = status
}

// SetDown makes every endpoint answer 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the calls received for one path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Created returns the accepted creation bodies in arrival order.
func (s *Server) Created() []task.CreateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.CreateRequest(nil), s.created...)
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record, s.auth)

	api := r.Group("/api")
	api.GET("/schemes", s.listSchemes)
	api.GET("/schemes/:id/zones", s.listZones)
	api.GET("/zones/:id/routes", s.listRoutes)
	api.GET("/connections", s.searchConnections)
	api.GET("/connections/disconnection-candidates", s.candidates)
	api.GET("/task-types", func(c *gin.Context) { ok(c, s.fixture.TaskTypes) })
	api.GET("/users", func(c *gin.Context) { ok(c, s.fixture.Assignees) })
	api.POST("/tasks", s.createTask)
	api.PATCH("/tasks/:id/assign", s.assignTask)
	return r
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:         c.Request.Method,
		Path:           c.Request.URL.Path,
		Query:          c.Request.URL.Query(),
		IdempotencyKey: c.GetHeader(billing.IdempotencyHeader),
	})
	down := s.down
	s.mu.Unlock()
	if down {
		fail(c, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if s.fixture.Session == "" {
		c.Next()
		return
	}
	got, err := c.Cookie(billing.SessionCookie)
	if err != nil || got == "" {
		fail(c, http.StatusUnauthorized, "login required")
		return
	}
	if got != s.fixture.Session {
		fail(c, http.StatusForbidden, "session not permitted")
		return
	}
	c.Next()
}

func (s *Server) listSchemes(c *gin.Context) {
	include := c.Query("include")
	out := make([]location.Scheme, 0, len(s.fixture.Schemes))
	for _, sc := range s.fixture.Schemes {
		if !strings.Contains(include, "zones") {
			sc.Zones = nil
		}
		out = append(out, sc)
	}
	ok(c, out)
}

func (s *Server) listZones(c *gin.Context) {
	for _, sc := range s.fixture.Schemes {
		if sc.ID == c.Param("id") {
			ok(c, sc.Zones)
			return
		}
	}
	fail(c, http.StatusNotFound, "scheme not found")
}

func (s *Server) listRoutes(c *gin.Context) {
	for _, sc := range s.fixture.Schemes {
		for _, z := range sc.Zones {
			if z.ID == c.Param("id") {
				ok(c, z.Routes)
				return
			}
		}
	}
	fail(c, http.StatusNotFound, "zone not found")
}

func (s *Server) inScope(c *gin.Context, conn connection.Connection) bool {
	for param, got := range map[string]string{
		"scheme_id":     conn.SchemeID,
		"zone_id":       conn.ZoneID,
		"route_id":      conn.RouteID,
		"connection_id": conn.ID,
	} {
		if want := c.Query(param); want != "" && want != got {
			return false
		}
	}
	if q := strings.ToLower(c.Query("search")); q != "" {
		hay := strings.ToLower(conn.Number + " " + conn.CustomerName)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (s *Server) searchConnections(c *gin.Context) {
	out := []connection.Connection{}
	for _, conn := range s.fixture.Connections {
		if s.inScope(c, conn) {
			out = append(out, conn)
		}
	}
	ok(c, out)
}

func (s *Server) candidates(c *gin.Context) {
	if c.Query("scheme_id") == "" && c.Query("zone_id") == "" && c.Query("route_id") == "" {
		fail(c, http.StatusBadRequest, "an aggregate scope is required")
		return
	}
	minBalance := decimal.Zero
	if raw := c.Query("min_balance"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "bad min_balance")
			return
		}
		minBalance = d
	}
	minMonths := 0
	if raw := c.Query("min_unpaid_months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "bad min_unpaid_months")
			return
		}
		minMonths = n
	}
	out := []connection.Connection{}
	for _, conn := range s.fixture.Connections {
		if !s.inScope(c, conn) || conn.Status == connection.StatusDisconnected {
			continue
		}
		if conn.Balance.LessThan(minBalance) || conn.UnpaidMonths < minMonths {
			continue
		}
		out = append(out, conn)
	}
	ok(c, out)
}

func (s *Server) createTask(c *gin.Context) {
	var req task.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.TypeID == "" {
		fail(c, http.StatusUnprocessableEntity, "title and type are required")
		return
	}
	target := req.ConnectionID + req.RouteID + req.ZoneID + req.SchemeID
	key := c.GetHeader(billing.IdempotencyHeader)

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, found := s.failOnce[target]; found {
		delete(s.failOnce, target)
		fail(c, status, fmt.Sprintf("could not create task for %s", target))
		return
	}
	if status, found := s.fail[target]; found {
		fail(c, status, fmt.Sprintf("could not create task for %s", target))
		return
	}
	if prior, found := s.keys[key]; found && key != "" {
		ok(c, prior)
		return
	}
	t := task.Task{
		ID:          uuid.NewString(),
		TypeID:      req.TypeID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      "OPEN",
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
		Fields:      req.Fields,
	}
	s.created = append(s.created, req)
	s.fixture.Tasks = append(s.fixture.Tasks, t)
	if key != "" {
		s.keys[key] = t
	}
	ok(c, t)
}

func (s *Server) assignTask(c *gin.Context) {
	var req task.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, found := s.fail[c.Param("id")]; found {
		fail(c, status, "could not assign task")
		return
	}
	for i, t := range s.fixture.Tasks {
		if t.ID == c.Param("id") {
			s.fixture.Tasks[i].AssigneeID = req.AssigneeID
			ok(c, s.fixture.Tasks[i])
			return
		}
	}
	fail(c, http.StatusNotFound, "task not found")
}
