package echoapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/portal"
)

// TabHeader carries the id of the tab a request is made from.
const TabHeader = "X-Tab-ID"

var contextTabKey = "tab"

// TabFactory opens a new portal instance on its own store handle.
type TabFactory func(ctx context.Context) (*portal.Portal, error)

// tabs are the portal instances opened by clients, each with its own session.
type tabs struct {
	newTab TabFactory

	mu   sync.RWMutex
	open map[string]*openTab
}

// openTab applies the other tabs' changes in the background until stopped,
// so a session ended elsewhere is ended here without waiting for a request.
type openTab struct {
	portal *portal.Portal
	stop   context.CancelFunc
	done   chan struct{}
}

func (ot *openTab) close() {
	ot.stop()
	<-ot.done
	ot.portal.Close()
}

func newTabs(newTab TabFactory) *tabs {
	return &tabs{
		newTab: newTab,
		open:   make(map[string]*openTab),
	}
}

func (t *tabs) create(ctx context.Context) (string, error) {
	p, err := t.newTab(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()

	runCtx, stop := context.WithCancel(context.Background())
	ot := &openTab{portal: p, stop: stop, done: make(chan struct{})}
	go func() {
		defer close(ot.done)
		_ = p.Run(runCtx)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[id] = ot
	return id, nil
}

func (t *tabs) get(id string) (*portal.Portal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ot, ok := t.open[id]
	if !ok {
		return nil, false
	}
	return ot.portal, true
}

func (t *tabs) close(id string) bool {
	t.mu.Lock()
	ot, ok := t.open[id]
	delete(t.open, id)
	t.mu.Unlock()

	if ok {
		ot.close()
	}
	return ok
}

func (t *tabs) closeAll() {
	t.mu.Lock()
	open := t.open
	t.open = make(map[string]*openTab)
	t.mu.Unlock()

	for _, ot := range open {
		ot.close()
	}
}

type tabApi struct {
	tabs *tabs
}

func registerTabAPI(g *echo.Group, t *tabs) {
	api := tabApi{tabs: t}

	tg := g.Group("/tabs")
	tg.POST("", api.create)
	tg.DELETE("/:id", api.destroy)
}

func (api *tabApi) create(ctx echo.Context) error {
	id, err := api.tabs.create(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "opening tab")
	}
	return ctx.JSON(http.StatusCreated, TabResponse{Tab: id})
}

func (api *tabApi) destroy(ctx echo.Context) error {
	if !api.tabs.close(ctx.Param("id")) {
		return errHttpUnknownTab
	}
	return ctx.NoContent(http.StatusNoContent)
}

// getContextTab returns the portal set by tabMiddleware.
func getContextTab(ctx echo.Context) (*portal.Portal, error) {
	p, ok := ctx.Get(contextTabKey).(*portal.Portal)
	if !ok {
		return nil, errors.New("tab not found in echo.Context")
	}
	return p, nil
}

type TabResponse struct {
	Tab string `json:"tab"`
}
