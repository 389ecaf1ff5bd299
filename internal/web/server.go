package web

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gtec-tasks/internal/repository"
	"gtec-tasks/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SessionCookie names the cookie that selects a per-session task store.
const SessionCookie = "gtec_session"

const tasksKey = "tasks"

// Server is the GTEC web front-end: HTML forms, JSON API and export.
type Server struct {
	tasks      *service.TaskService
	sessions   *repository.Sessions
	requesters []string
	sessionTTL time.Duration
	router     *gin.Engine
}

// NewServer serves every request from one shared task service.
func NewServer(tasks *service.TaskService) *Server {
	s := &Server{tasks: tasks, requesters: tasks.Requesters()}
	s.routes()
	return s
}

// NewSessionServer gives every browser session its own in-memory store.
func NewSessionServer(sessions *repository.Sessions, requesters []string, ttl time.Duration) *Server {
	s := &Server{sessions: sessions, requesters: requesters, sessionTTL: ttl}
	s.routes()
	return s
}

func (s *Server) routes() {
	router := gin.Default()
	router.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))

	router.GET("/health", s.handleHealth)
	router.DELETE("/session", s.handleEndSession)

	site := router.Group("/", s.withTasks)
	{
		site.GET("/", s.handleIndex)
		site.POST("/tasks", s.handleCreate)
		site.POST("/tasks/:id/status", s.handleStatus)
		site.POST("/tasks/:id/approval", s.handleApproval)
		// Dashboard forms pick the task from a select field.
		site.POST("/forms/status", s.handleStatus)
		site.POST("/forms/approval", s.handleApproval)
		site.GET("/export.xlsx", s.handleExport)
	}

	api := router.Group("/api", s.withTasks)
	{
		api.GET("/tasks", s.handleAPIList)
		api.POST("/tasks", s.handleAPICreate)
		api.GET("/tasks/:id", s.handleAPITask)
		api.PATCH("/tasks/:id/status", s.handleAPIStatus)
		api.POST("/tasks/:id/approval", s.handleAPIApproval)
		api.GET("/kpis", s.handleAPIKPIs)
	}

	s.router = router
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the web server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// withTasks resolves the task service for the request. In session mode the
// session cookie picks the store, and a new session is started when the
// cookie is missing or stale.
func (s *Server) withTasks(c *gin.Context) {
	if s.sessions == nil {
		c.Set(tasksKey, s.tasks)
		c.Next()
		return
	}

	var sess *repository.Session
	if id, err := c.Cookie(SessionCookie); err == nil {
		sess, _ = s.sessions.Lookup(id)
	}
	if sess == nil {
		sess = s.sessions.Start()
		log.Printf("[info] session started id=%s", sess.ID)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sess.ID, int(s.sessionTTL.Seconds()), "/", "", false, true)
	c.Set(tasksKey, service.NewTaskService(sess.Store, s.requesters))
	c.Next()
}

func taskService(c *gin.Context) *service.TaskService {
	return c.MustGet(tasksKey).(*service.TaskService)
}
