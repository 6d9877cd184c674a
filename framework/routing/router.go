package routing

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
)

// Router wraps chi.Router and dispatches actions out of request-scoped
// containers created under its root container.
type Router struct {
	mux chi.Router
	*scope
}

// scope is shared by a router and its groups. mu serializes every call
// into the container tree made while serving requests.
type scope struct {
	mu         sync.Mutex
	root       *container.Container
	log        *zap.Logger
	installers []container.Installer
}

// New creates a Router with RequestID, RealIP, request logging and Recoverer.
func New(root *container.Container, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	return &Router{mux: r, scope: &scope{root: root, log: log}}
}

// Container returns the container request scopes are created under.
func (r *Router) Container() *container.Container { return r.root }

// ── HTTP verbs ────────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Mount attaches an arbitrary handler, e.g. a metrics endpoint.
func (r *Router) Mount(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

// ── Groups & Prefixes ─────────────────────────────────────────────────────────

// Group creates an inline group sharing middleware.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx, scope: r.scope})
	})
}

// Prefix creates a sub-router under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx, scope: r.scope})
	})
}

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Actions ───────────────────────────────────────────────────────────────────

// Action is one unit of request work. Actions are resolved from a
// container created for the request, so they declare what they need with
// inject tags:
//
//	type ShowUser struct {
//	    Req   *routing.Request  `inject:""`
//	    Res   *routing.Response `inject:""`
//	    Users UserRepository    `inject:""`
//	}
//
//	func (a *ShowUser) Handle(ctx context.Context) error { ... }
type Action interface {
	Handle(ctx context.Context) error
}

// PerRequest adds installers run against every request container before the
// action is resolved. Use it for bindings that depend on the request.
//
//	r.PerRequest(container.InstallerFunc(func(c *container.Container) error {
//	    return routing.BindAction[*ShowUser](c)
//	}))
func (r *Router) PerRequest(installers ...container.Installer) {
	r.installers = append(r.installers, installers...)
}

// BindAction binds A as a transient in c. Bindings are built by the container
// that holds them, so actions that inject request values are bound per
// request (see PerRequest) or left unbound.
func BindAction[A Action](c *container.Container) error {
	return container.Bind[A](c).AsTransient()
}

// Handle routes method and pattern to action A. For every request a child of
// the router's container is created holding *http.Request,
// http.ResponseWriter, *Request and *Response, with the PerRequest
// installers applied. A is resolved from it when bound and instantiated
// otherwise. The request container is disposed afterwards.
//
// Building and disposing request containers is serialized across the
// router and its groups; A.Handle runs concurrently and must not register
// into shared containers.
func Handle[A Action](r *Router, method, pattern string) {
	key := container.KeyOf[A]()
	r.mux.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res := NewResponse(w)
		if err := r.dispatch(key, w, req, res); err != nil {
			r.fail(res, req, key, err)
		}
	}))
}

func (r *Router) dispatch(key container.Key, w http.ResponseWriter, req *http.Request, res *Response) error {
	name := "request"
	if id := middleware.GetReqID(req.Context()); id != "" {
		name = "request." + id
	}

	r.mu.Lock()
	sc, action, err := r.open(name, key, w, req, res)
	r.mu.Unlock()
	if sc != nil {
		defer r.close(sc)
	}
	if err != nil {
		return err
	}
	return action.Handle(req.Context())
}

// open creates the request container and builds the action. The caller
// holds r.mu.
func (r *Router) open(name string, key container.Key, w http.ResponseWriter, req *http.Request, res *Response) (*container.Container, Action, error) {
	sc, err := r.root.CreateSubContainer(container.WithName(name))
	if err != nil {
		return nil, nil, err
	}
	if err := bindRequest(sc, w, req, res); err != nil {
		return sc, nil, err
	}
	for _, inst := range r.installers {
		if err := sc.Install(inst); err != nil {
			return sc, nil, err
		}
	}

	var v any
	if sc.Has(key) {
		v, err = sc.ResolveKey(key)
	} else {
		v, err = sc.InstantiateType(key.Type)
	}
	if err != nil {
		return sc, nil, err
	}
	action, ok := v.(Action)
	if !ok {
		return sc, nil, errors.New("routing: resolved value is not an Action")
	}
	return sc, action, nil
}

func (r *Router) close(sc *container.Container) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := sc.Dispose(); err != nil {
		r.log.Warn("request scope dispose failed", zap.Error(err))
	}
}

func bindRequest(sc *container.Container, w http.ResponseWriter, req *http.Request, res *Response) error {
	if err := container.Bind[*http.Request](sc).ToInstance(req); err != nil {
		return err
	}
	if err := container.Bind[http.ResponseWriter](sc).ToInstance(w); err != nil {
		return err
	}
	if err := container.Bind[*Request](sc).ToInstance(NewRequest(req)); err != nil {
		return err
	}
	return container.Bind[*Response](sc).ToInstance(res)
}

func (r *Router) fail(res *Response, req *http.Request, key container.Key, err error) {
	var he *HTTPError
	if errors.As(err, &he) {
		res.Error(he.Status, he.Message)
		return
	}
	r.log.Error("action failed",
		zap.Stringer("action", key),
		zap.String("path", req.URL.Path),
		zap.String("request_id", middleware.GetReqID(req.Context())),
		zap.Error(err),
	)
	res.ServerError()
}

// HTTPError is an action failure carrying its own status.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return http.StatusText(e.Status) + ": " + e.Message }

// Abort returns an *HTTPError for status.
//
//	return routing.Abort(http.StatusNotFound, "user not found")
func Abort(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// ── Params ────────────────────────────────────────────────────────────────────

// Param extracts a URL param.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ─────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// ── Middleware ────────────────────────────────────────────────────────────────

// RequestLogger logs one line per request at a level chosen by status.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("ip", req.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.Int("body_size", ww.BytesWritten()),
			}
			if id := middleware.GetReqID(req.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			switch {
			case status >= 500:
				log.Error("Server error", fields...)
			case status >= 400:
				log.Warn("Client error", fields...)
			default:
				log.Info("Request completed", fields...)
			}
		})
	}
}
