package demo

import (
	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/middleware"
	"go.uber.org/zap"
)

const (
	// MaxUserBody caps the size of user payloads
	MaxUserBody = 64 << 10
	// IndexFile is served for "/" from the static root
	IndexFile = "index.html"
)

// Register adds the demo routes and middleware to setup
func Register(setup *core.Setup, h *Handlers) {
	r := setup.Router()
	h.routes = r

	api := r.Group("/api")
	data := api.Group("/data")
	data.PUT("/:id", h.UpdateData, "data.update").
		DELETE("/:id", h.DeleteData, "data.delete")

	users := api.Group("/user")
	users.GET("/:id", h.GetUser, "api.user").
		POST("/", h.CreateUser, "user.create").
		DELETE("/:id", h.DeleteUser, "user.delete")

	r.GET("/api", h.Root, "root").
		GET("/user/:id", h.GetUser, "user").
		GET("/users", h.ListUsers, "users").
		GET("/cookies", h.Cookies).
		POST("/api", h.PostData).
		GET("/metrics", h.Metrics).
		GET("/routes", h.Routes).
		AddGroup(data).
		AddGroup(users)

	setup.StaticFile("/", IndexFile)

	m := setup.Middleware()
	m.AddGlobal(middleware.RequestID(), middleware.Logger(h.logger))
	m.ForRoute("/api/data/*", h.audit)
	m.ForRoute("/api/user/*", middleware.BodyLimit(MaxUserBody))
}

// audit logs writes to the data group
func (h *Handlers) audit(c *http.Context) middleware.Result {
	h.logger.Info("data route",
		zap.Stringer("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("request_id", middleware.GetRequestID(c)))
	return middleware.Next(c)
}
