// Package routing holds the runtime-mutable route table that dispatches
// inbound trigger requests to their handler chains.
//
// Every mutation rebuilds an immutable gorilla/mux router and publishes it
// with a single atomic swap, so concurrent dispatch sees either the table
// before a Register/Unregister or the table after it, never a mix.
package routing

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/common/utils"
	"scheduler-webhook/internal/common/validation"
	"scheduler-webhook/internal/response"

	"github.com/gorilla/mux"
)

// routePattern is a literal path, optionally ending in the {id} segment
// added by ParamPattern. Anything else would reach the router as a variable.
var routePattern = regexp.MustCompile(`^[^{}]*(/\{id\})?$`)

// ErrorHandler answers a request whose chain failed
type ErrorHandler func(c *Context, err error)

// Entry is one registered route
type Entry struct {
	Method  string
	Pattern string
	Owner   string
	Chain   Chain
	OnError ErrorHandler
}

type routeKey struct {
	method  string
	pattern string
}

// Table is the route registry shared by all triggers and the HTTP layer
type Table struct {
	mu      sync.Mutex
	entries  map[routeKey]*Entry
	owners   map[string][]routeKey
	reserved []string

	router atomic.Pointer[mux.Router]
	logger logging.Logger
}

// NewTable creates an empty route table
func NewTable(logger logging.Logger) *Table {
	t := &Table{
		entries: make(map[routeKey]*Entry),
		owners:  make(map[string][]routeKey),
		logger:  logger.WithFields(logging.Field{Key: "component", Value: "route_table"}),
	}
	t.router.Store(t.build())
	return t
}

// Reserve marks paths served by the host before the table. A pattern equal
// to a reserved path or below it is refused by Register.
func (t *Table) Reserve(paths ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		t.reserved = append(t.reserved, strings.TrimSuffix(NormalizePath(p), "/"))
	}
}

func (t *Table) reservedLocked(pattern string) (string, bool) {
	for _, p := range t.reserved {
		if p == "" {
			continue
		}
		if pattern == p || strings.HasPrefix(pattern, p+"/") {
			return p, true
		}
	}
	return "", false
}

// Register binds (method, pattern) to chain for owner. Any entry the owner
// already holds is removed in the same atomic step, so re-registering after
// a path edit or a redeploy never leaves stale routes behind. A key held by
// a different owner is a RouteConflict and leaves the table unchanged.
func (t *Table) Register(entry Entry) error {
	entry.Method = strings.ToUpper(entry.Method)
	entry.Pattern = NormalizePath(entry.Pattern)
	key := routeKey{entry.Method, entry.Pattern}

	if err := validation.NewValidator().
		RequireMatch(entry.Pattern, routePattern, "route pattern", "a literal path, optionally ending in /{id}").
		Error(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prefix, ok := t.reservedLocked(entry.Pattern); ok {
		err := errors.RouteConflictError(entry.Method, entry.Pattern, "host")
		t.logger.Error("Route shadowed by a host route", err,
			logging.Field{Key: "pattern", Value: entry.Pattern},
			logging.Field{Key: "reserved", Value: prefix},
			logging.Field{Key: "requested_by", Value: entry.Owner},
		)
		return err
	}

	if existing, ok := t.entries[key]; ok && existing.Owner != entry.Owner {
		err := errors.RouteConflictError(entry.Method, entry.Pattern, existing.Owner)
		t.logger.Error("Route conflict between triggers", err,
			logging.Field{Key: "method", Value: entry.Method},
			logging.Field{Key: "pattern", Value: entry.Pattern},
			logging.Field{Key: "owner", Value: existing.Owner},
			logging.Field{Key: "requested_by", Value: entry.Owner},
		)
		return err
	}

	t.removeOwnerLocked(entry.Owner)
	t.entries[key] = &entry
	t.owners[entry.Owner] = append(t.owners[entry.Owner], key)
	t.router.Store(t.build())

	t.logger.Debug("Route registered",
		logging.Field{Key: "method", Value: entry.Method},
		logging.Field{Key: "pattern", Value: entry.Pattern},
		logging.Field{Key: "owner", Value: entry.Owner},
	)
	return nil
}

// Unregister removes every entry held by owner; unknown owners are a no-op
func (t *Table) Unregister(owner string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.removeOwnerLocked(owner)
	if removed > 0 {
		t.router.Store(t.build())
		t.logger.Debug("Routes unregistered",
			logging.Field{Key: "owner", Value: owner},
			logging.Field{Key: "count", Value: removed},
		)
	}
	return removed
}

func (t *Table) removeOwnerLocked(owner string) int {
	keys := t.owners[owner]
	for _, key := range keys {
		delete(t.entries, key)
	}
	delete(t.owners, owner)
	return len(keys)
}

// Entries returns a snapshot of all registered entries ordered by pattern then method
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedLocked()
}

// OwnedBy returns the entries registered by owner
func (t *Table) OwnedBy(owner string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.owners[owner]))
	for _, key := range t.owners[owner] {
		out = append(out, *t.entries[key])
	}
	return out
}

// Lookup resolves a request method and path to its entry
func (t *Table) Lookup(method, path string) (*Entry, map[string]string, bool) {
	req, err := http.NewRequest(strings.ToUpper(method), path, nil)
	if err != nil {
		return nil, nil, false
	}

	var match mux.RouteMatch
	if !t.router.Load().Match(req, &match) || match.MatchErr != nil {
		return nil, nil, false
	}

	entry, ok := match.Handler.(*dispatcher)
	if !ok {
		return nil, nil, false
	}
	e := *entry.entry
	return &e, match.Vars, true
}

// ServeHTTP dispatches through the current router snapshot. The chain runs
// outside the table lock.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.Load().ServeHTTP(w, r)
}

func (t *Table) sortedLocked() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := strings.Contains(out[i].Pattern, "{"), strings.Contains(out[j].Pattern, "{")
		if pi != pj {
			return !pi
		}
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// build creates the router for the current entries. Static patterns are
// added before parameterized ones so an exact path wins over {id}.
func (t *Table) build() *mux.Router {
	r := mux.NewRouter()
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound

	for _, e := range t.sortedLocked() {
		entry := e
		r.Handle(entry.Pattern, &dispatcher{entry: &entry, logger: t.logger}).Methods(entry.Method)
	}
	return r
}

type dispatcher struct {
	entry  *Entry
	logger logging.Logger
}

func (d *dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, ok := logging.RequestIDFromContext(r.Context())
	if !ok {
		requestID = utils.GenerateRequestID()
	}

	c := &Context{
		Request:   r,
		Response:  response.New(w, r),
		Params:    mux.Vars(r),
		Owner:     d.entry.Owner,
		RequestID: requestID,
	}
	defer c.Response.Close()

	if err := d.entry.Chain.Run(c); err != nil {
		if d.entry.OnError != nil {
			d.entry.OnError(c, err)
		} else {
			d.logger.Warn("Route handler failed",
				logging.Err(err),
				logging.Field{Key: "owner", Value: d.entry.Owner},
				logging.Field{Key: "path", Value: r.URL.Path},
			)
		}
		if !c.Response.Written() {
			c.Response.SendStatus(http.StatusInternalServerError)
		}
	}
}
