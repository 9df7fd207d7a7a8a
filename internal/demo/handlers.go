package demo

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/codec"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/httperr"
	"github.com/searchktools/fast-dispatch/core/middleware"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/core/router"
	"go.uber.org/zap"
)

// Handlers serves the demo routes
type Handlers struct {
	logger  *zap.Logger
	monitor *observability.Monitor
	routes  *router.Table
}

// NewHandlers creates the demo handlers. monitor may be nil.
func NewHandlers(logger *zap.Logger, monitor *observability.Monitor) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{logger: logger.Named("demo"), monitor: monitor}
}

type messageBody struct {
	Message string `json:"message"`
}

// Root answers the hello route
func (h *Handlers) Root(c *http.Context) http.Response {
	return http.OK().Text("Hello, World!").Response()
}

// GetUser returns a user from the shared store
func (h *Handlers) GetUser(c *http.Context) http.Response {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return http.BadRequest().Text("Invalid ID").Response()
	}

	store, err := http.ResourceAs[*UserStore](c)
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindConfig, err))
	}

	user, err := store.Get(id)
	if err != nil {
		return storeError(err)
	}
	return h.encode(c, http.OK(), user)
}

// ListUsers returns every stored user
func (h *Handlers) ListUsers(c *http.Context) http.Response {
	store, err := http.ResourceAs[*UserStore](c)
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindConfig, err))
	}
	return h.encode(c, http.OK(), store.List())
}

// CreateUser decodes a user in the request's content type and stores it
func (h *Handlers) CreateUser(c *http.Context) http.Response {
	store, err := http.ResourceAs[*UserStore](c)
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindConfig, err))
	}

	var u User
	if err := c.Request().Decode(&u); err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindDeserialization, err))
	}

	created, err := store.Create(u)
	if err != nil {
		return storeError(err)
	}
	h.logger.Info("user created", zap.Int("id", created.ID), zap.String("request_id", middleware.GetRequestID(c)))
	return h.encode(c, http.Created().Header("Location", "/api/user/"+strconv.Itoa(created.ID)), created)
}

// DeleteUser removes a user from the shared store
func (h *Handlers) DeleteUser(c *http.Context) http.Response {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return http.BadRequest().Text("Invalid ID").Response()
	}

	store, err := http.ResourceAs[*UserStore](c)
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindConfig, err))
	}
	if err := store.Delete(id); err != nil {
		return storeError(err)
	}
	return http.Deleted().Text("Deleted user " + strconv.Itoa(id)).Response()
}

// Cookies echoes the request cookies as JSON
func (h *Handlers) Cookies(c *http.Context) http.Response {
	b, err := http.OK().Encode(codec.JSON, c.Request().Cookies)
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindSerialization, err))
	}
	return b.Response()
}

// PostData accepts a {"message": ...} JSON body
func (h *Handlers) PostData(c *http.Context) http.Response {
	body, ok := http.JSONBody[messageBody](c.Request())
	if !ok {
		return http.BadRequest().JSON(`{"message":"Failed to parse JSON"}`).Response()
	}
	h.logger.Info("data received", zap.String("message", body.Message))
	return http.Created().Text("Data created successfully").Response()
}

// UpdateData acknowledges an update of the item in :id
func (h *Handlers) UpdateData(c *http.Context) http.Response {
	return http.Updated().Text("Updated data for ID: " + c.Param("id")).Response()
}

// DeleteData acknowledges a delete of the item in :id
func (h *Handlers) DeleteData(c *http.Context) http.Response {
	return http.Deleted().Text("Deleted data for ID: " + c.Param("id")).Response()
}

// Metrics exposes the monitor's Prometheus collectors
func (h *Handlers) Metrics(c *http.Context) http.Response {
	if h.monitor == nil {
		return httperr.Response(httperr.New(httperr.KindUnavailable, "metrics disabled"))
	}
	data, contentType, err := h.monitor.MetricsText()
	if err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindSerialization, err))
	}
	return http.OK().Header(http.HeaderContentType, contentType).Body(data).Response()
}

// Routes lists the registered routes
func (h *Handlers) Routes(c *http.Context) http.Response {
	if h.routes == nil {
		return h.encode(c, http.OK(), []router.RouteInfo{})
	}
	return h.encode(c, http.OK(), h.routes.Routes())
}

// encode writes v in the codec named by Accept, falling back to JSON
func (h *Handlers) encode(c *http.Context, b *http.Builder, v any) http.Response {
	cd, err := codec.ForContentType(c.Header("Accept"))
	if err != nil || cd == codec.Protobuf {
		cd = codec.JSON
	}
	if _, err := b.Encode(cd, v); err != nil {
		return httperr.Response(httperr.Wrap(httperr.KindSerialization, err))
	}
	return b.Response()
}

func storeError(err error) http.Response {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return httperr.Response(httperr.Wrap(httperr.KindNotFound, err))
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrInvalidUser):
		return httperr.Response(httperr.Wrap(httperr.KindValidation, err))
	default:
		return httperr.Response(httperr.Wrap(httperr.KindDatabase, err))
	}
}
