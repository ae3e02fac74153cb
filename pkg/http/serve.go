package xhttp

import (
	"net"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	defaultReadBufferSize  = 1024 * 4
	defaultWriteBufferSize = 1024 * 4
	defaultReadTimeout     = 2500 * time.Millisecond
	defaultWriteTimeout    = 2500 * time.Millisecond
	defaultRequestTimeout  = 5 * time.Second
)

var DefaultServerOption = ServerOption{
	IdleTimeout:           10 * time.Second,
	MaxIdleWorkerDuration: time.Minute,
	TCPKeepalivePeriod:    120 * time.Minute, // linux default
	MaxRequestBodySize:    1024 * 1024,
	RequestTimeout:        defaultRequestTimeout,
	ReadBufferSize:        defaultReadBufferSize, // also the max header size
	WriteBufferSize:       defaultWriteBufferSize,
	ReadTimeout:           defaultReadTimeout,
	WriteTimeout:          defaultWriteTimeout,
	Concurrency:           30_000,
	// the fasthttp client default max conns per ip is 512
	MaxConnsPerIP: 10_000,
}

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Server = fasthttp.Server

// ServerOption is the subset of fasthttp.Server settings the binaries tune.
type ServerOption struct {
	IdleTimeout           time.Duration
	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration
	MaxRequestBodySize    int

	// RequestTimeout bounds a handler through TimeoutMiddleware, not the server.
	RequestTimeout time.Duration

	ReadBufferSize  int
	WriteBufferSize int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration

	Concurrency   int
	MaxConnsPerIP int
}

// WithOverrides returns o with every positive argument applied. Buffers of
// 1KB or less are ignored.
func (o ServerOption) WithOverrides(readTimeout, writeTimeout time.Duration, readBuffer, writeBuffer int) ServerOption {
	if readTimeout > 0 {
		o.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		o.WriteTimeout = writeTimeout
	}
	if readBuffer > 1024 {
		o.ReadBufferSize = readBuffer
	}
	if writeBuffer > 1024 {
		o.WriteBufferSize = writeBuffer
	}
	return o
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      NotFoundHandler,
		ErrorHandler:                 errorHandler,
		Concurrency:                  options.Concurrency,
		ReadBufferSize:               options.ReadBufferSize,
		WriteBufferSize:              options.WriteBufferSize,
		ReadTimeout:                  options.ReadTimeout,
		WriteTimeout:                 options.WriteTimeout,
		IdleTimeout:                  options.IdleTimeout,
		MaxConnsPerIP:                options.MaxConnsPerIP,
		MaxIdleWorkerDuration:        options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:           options.TCPKeepalivePeriod,
		MaxRequestBodySize:           options.MaxRequestBodySize,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		LogAllErrors:                 true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
		NoDefaultContentType:         true,
		CloseOnShutdown:              true,
		Logger:                       logger.GetLogger(),
	}
}

func errorHandler(ctx *RequestCtx, err error) {
	logger.Warn("[xhttp] connection error", "remote", ctx.RemoteAddr().String(), "error", err)
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: CreateDefaultRouter(),
		option: options,
	}
}

// CreateServer returns an engine with the default options and no middleware.
func CreateServer() *Engine {
	return NewServer(DefaultServerOption)
}

func (e *Engine) Option() ServerOption {
	return e.option
}

func (e *Engine) ListenAndServe(addr string) error {
	if err := e.DoRouting(); err != nil {
		return err
	}
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// Serve is ListenAndServe over an existing listener.
func (e *Engine) Serve(ln net.Listener) error {
	if err := e.DoRouting(); err != nil {
		return err
	}
	return e.Server.Serve(ln)
}

func (e *Engine) DoRouting() error {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route registered", "method", method, "path", r)
		}
	}
	e.Server.Handler = e.Router.Handler
	// the first middleware passed to Use ends up outermost
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for i, m := range middle {
		e.Server.Handler = m(e.Server.Handler)
		logger.Debug("[xhttp] middleware registered", "order", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	return nil
}

// Use adds middleware to the chain which is run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown waits for in-flight requests and closes idle connections.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
