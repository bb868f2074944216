package mockapi

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// fault is a one-shot failure injected for a method and path.
type fault struct {
	method string
	path   string
	status int
}

type faults struct {
	mu      sync.Mutex
	pending []fault
}

func newFaults() *faults { return &faults{} }

func (f *faults) add(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, fault{method: method, path: path, status: status})
}

// take removes and returns the first fault matching the request.
func (f *faults) take(method, path string) (fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ft := range f.pending {
		if ft.method == method && ft.path == path {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return ft, true
		}
	}
	return fault{}, false
}

func (f *faults) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		if ft, ok := f.take(req.Method, req.URL.Path); ok {
			return echo.NewHTTPError(ft.status, http.StatusText(ft.status))
		}
		return next(ctx)
	}
}
