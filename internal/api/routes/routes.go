package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lauraabreulima/ecochat/internal/api/middleware"
	"github.com/lauraabreulima/ecochat/internal/relay"
	"github.com/lauraabreulima/ecochat/internal/services"
)

// Router wires the relay hub and its read-only views into the HTTP surface.
type Router struct {
	engine       *gin.Engine
	hub          *relay.Hub
	redisService *services.RedisService
	jwtSecret    string
}

// NewRouter builds the HTTP router. redisService may be nil when Redis is
// disabled; the rate limiter is then skipped.
func NewRouter(hub *relay.Hub, redisService *services.RedisService, jwtSecret string) *Router {
	return &Router{
		engine:       gin.New(),
		hub:          hub,
		redisService: redisService,
		jwtSecret:    jwtSecret,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.LogApi())
	r.engine.Use(middleware.CORS())

	r.engine.GET("/healthz", r.health)

	ws := []gin.HandlerFunc{middleware.WSAuth(r.jwtSecret)}
	if r.redisService != nil {
		rl := middleware.NewRateLimitMiddleware(r.redisService)
		ws = append([]gin.HandlerFunc{rl.RateLimitIP(30, time.Minute)}, ws...)
	}
	r.engine.GET("/ws", append(ws, r.serveWS)...)

	api := r.engine.Group("/api/v1")
	{
		api.GET("/presence", r.presence)
		api.GET("/stats", r.stats)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) serveWS(c *gin.Context) {
	userID := c.GetString("user_id")
	relay.ServeWS(r.hub, c.Writer, c.Request, userID)
}

func (r *Router) presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": r.hub.OnlineUsers()})
}

func (r *Router) stats(c *gin.Context) {
	c.JSON(http.StatusOK, r.hub.Stats())
}
