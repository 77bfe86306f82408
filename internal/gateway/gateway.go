package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"banco/internal/cache"
	"banco/internal/core"
	"banco/internal/graphql"
	"banco/internal/log"
	"banco/internal/metrics"
)

type Options struct {
	// RetainSize bounds how many cache-first results are kept once their
	// last subscriber leaves.
	RetainSize int
	RetainTTL  time.Duration
	Logger     *log.Logger
	// OnSessionError is called, outside any lock, whenever the backend
	// rejects the session.
	OnSessionError func(ctx context.Context, err error)
}

type Gateway struct {
	exec           Executor
	logger         *log.Logger
	onSessionError func(context.Context, error)

	mu       sync.Mutex
	entries  map[string]*entry
	retained *cache.LRUCache[Snapshot]

	flights singleflight.Group
	seq     atomic.Uint64
	subIDs  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	key   string
	query Query
	vars  map[string]any
	snap  Snapshot
	gen   uint64
	subs  map[uint64]*Subscription
}

func New(exec Executor, opts Options) *Gateway {
	if opts.RetainSize <= 0 {
		opts.RetainSize = 32
	}
	if opts.RetainTTL <= 0 {
		opts.RetainTTL = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		exec:           exec,
		logger:         log.OrNop(opts.Logger).WithComponent(log.ComponentGateway),
		onSessionError: opts.OnSessionError,
		entries:        make(map[string]*entry),
		retained:       cache.NewLRUCache[Snapshot](opts.RetainSize, opts.RetainTTL),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetSessionErrorHandler replaces the session error hook. It exists because
// the session store and the gateway reference each other.
func (g *Gateway) SetSessionErrorHandler(fn func(ctx context.Context, err error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSessionError = fn
}

// Retained exposes the retention cache so it can be swept periodically.
func (g *Gateway) Retained() cache.Cleaner {
	return g.retained
}

// Close stops background fetches and waits for them to finish.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

// LastSeq returns the sequence number of the most recent snapshot.
func (g *Gateway) LastSeq() uint64 {
	return g.seq.Load()
}

// Key returns the view store key of q with vars.
func Key(q string, vars map[string]any) string {
	if len(vars) == 0 {
		return q + "|{}"
	}
	// encoding/json sorts map keys, which makes the key canonical.
	b, err := json.Marshal(vars)
	if err != nil {
		return q + "|!"
	}
	return q + "|" + string(b)
}

// Watch subscribes to q. The current value, if the policy allows serving
// one, is delivered immediately; every later state follows. The
// subscription ends when ctx is done or Close is called.
func (g *Gateway) Watch(ctx context.Context, q Query, vars map[string]any) *Subscription {
	key := Key(q.Name, vars)
	sub := newSubscription(g, key, g.subIDs.Add(1))

	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{key: key, query: q, vars: vars, subs: make(map[uint64]*Subscription)}
		if q.Policy == CacheFirst {
			if snap, hit := g.retained.Take(key); hit {
				e.snap = snap
			}
		}
		g.entries[key] = e
	}
	e.subs[sub.id] = sub
	metrics.SetSubscribers(q.Name, g.subscribersOf(q.Name))

	switch {
	case q.Policy == NetworkOnly:
		g.refetchLocked(e, false)
	case e.snap.Status == StatusReady, e.snap.Status == StatusLoading:
		// Ready is served from the store; loading joins the fetch in flight.
		sub.deliver(e.snap)
	default:
		g.refetchLocked(e, false)
	}
	subscribers := len(e.subs)
	g.mu.Unlock()

	g.logger.Debug("Query watched",
		log.FieldQueryKey, key,
		"policy", q.Policy.String(),
		log.FieldSubscribers, subscribers)

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// Query runs q once and returns the first settled snapshot.
func (g *Gateway) Query(ctx context.Context, q Query, vars map[string]any) (Snapshot, error) {
	sub := g.Watch(ctx, q, vars)
	defer sub.Close()
	return sub.Next(ctx)
}

// Mutate performs exactly one round-trip. On success OnSuccess runs, then
// every query named in Invalidates is marked stale and reloaded. A partial
// success, where some result fields arrived next to errors, is handled the
// same way and its error is returned with the data. On failure the view
// store is left untouched.
func (g *Gateway) Mutate(ctx context.Context, req MutateRequest) (json.RawMessage, error) {
	start := time.Now()
	data, err := g.exec.Execute(ctx, graphql.Operation{
		Name:      req.Mutation.Name,
		Document:  req.Mutation.Document,
		Variables: req.Variables,
	})
	if err != nil && hasResult(data) {
		g.logger.WarnContext(ctx, "Mutation partially applied",
			log.FieldOperation, req.Mutation.Name,
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		if req.OnSuccess != nil {
			req.OnSuccess(data)
		}
		g.Invalidate(req.Invalidates...)
		g.reportSession(err)
		return data, err
	}
	if err != nil {
		g.logger.WarnContext(ctx, "Mutation failed",
			log.FieldOperation, req.Mutation.Name,
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		g.reportSession(err)
		return data, err
	}

	g.logger.InfoContext(ctx, "Mutation succeeded",
		log.FieldOperation, req.Mutation.Name,
		log.FieldDuration, time.Since(start).Milliseconds())

	if req.OnSuccess != nil {
		req.OnSuccess(data)
	}
	g.Invalidate(req.Invalidates...)
	return data, nil
}

// hasResult reports whether data carries at least one non-null top-level
// field. Errored fields come back as null.
func hasResult(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	found := false
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.Null {
			found = true
			return false
		}
		return true
	})
	return found
}

// Invalidate marks every entry of the named queries stale and reloads the
// ones that have subscribers. Stale data stays visible in the loading
// snapshot until the reload settles.
func (g *Gateway) Invalidate(names ...string) {
	if len(names) == 0 {
		return
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.retained.DeleteFunc(func(key string) bool {
		name, _, _ := strings.Cut(key, "|")
		return wanted[name]
	})

	for key, e := range g.entries {
		if !wanted[e.query.Name] {
			continue
		}
		metrics.RecordInvalidation(e.query.Name)
		g.flights.Forget(key)
		if len(e.subs) == 0 {
			delete(g.entries, key)
			continue
		}
		g.refetchLocked(e, true)
	}
	g.logger.Debug("Queries invalidated", "queries", names)
}

// ResetStore discards every cached result while keeping subscriptions alive:
// each subscriber immediately receives a fresh loading state and a new fetch
// is issued for it.
func (g *Gateway) ResetStore(ctx context.Context) error {
	g.mu.Lock()
	g.retained.Clear()
	active := 0
	for key, e := range g.entries {
		g.flights.Forget(key)
		if len(e.subs) == 0 {
			delete(g.entries, key)
			continue
		}
		active++
		g.refetchLocked(e, false)
	}
	g.mu.Unlock()

	metrics.RecordReset()
	g.logger.InfoContext(ctx, "View store reset", "active_queries", active)
	return nil
}

// Entries lists the view store, live entries first, then retained ones.
func (g *Gateway) Entries() []EntryInfo {
	g.mu.Lock()
	out := make([]EntryInfo, 0, len(g.entries))
	for key, e := range g.entries {
		out = append(out, EntryInfo{
			Key:         key,
			Query:       e.query.Name,
			Status:      e.snap.Status,
			Subscribers: len(e.subs),
			Seq:         e.snap.Seq,
		})
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	for _, key := range g.retained.Keys() {
		snap, ok := g.retained.Get(key)
		if !ok {
			continue
		}
		out = append(out, EntryInfo{Key: key, Query: snap.Query, Status: snap.Status, Seq: snap.Seq, Retained: true})
	}
	return out
}

// refetchLocked moves e to loading, tells its subscribers and starts a new
// fetch generation. keepData keeps the previous value visible.
func (g *Gateway) refetchLocked(e *entry, keepData bool) {
	e.gen++
	next := Snapshot{Key: e.key, Query: e.query.Name, Status: StatusLoading}
	if keepData {
		next.Data = e.snap.Data
		next.FetchedAt = e.snap.FetchedAt
	}
	g.publishLocked(e, next)

	gen := e.gen
	g.wg.Add(1)
	go g.fetch(e, gen)
}

func (g *Gateway) publishLocked(e *entry, snap Snapshot) {
	snap.Seq = g.seq.Add(1)
	e.snap = snap
	for _, sub := range e.subs {
		sub.deliver(snap)
	}
}

func (g *Gateway) fetch(e *entry, gen uint64) {
	defer g.wg.Done()

	start := time.Now()
	data, err := g.execute(e.key, e.query, e.vars)

	outcome := "ready"
	switch {
	case err != nil && data == nil:
		outcome = "error"
	case err != nil:
		outcome = "partial"
	}
	metrics.RecordFetch(e.query.Name, outcome, time.Since(start))

	g.mu.Lock()
	if g.entries[e.key] != e || e.gen != gen {
		g.mu.Unlock()
		g.logger.Debug("Superseded fetch result dropped", log.FieldQueryKey, e.key)
		return
	}

	next := Snapshot{Key: e.key, Query: e.query.Name, Status: StatusReady, Data: data, Err: err, FetchedAt: time.Now()}
	if err != nil && data == nil {
		next.Status = StatusError
		// Keep showing the last good value next to the error.
		next.Data = e.snap.Data
	}
	g.publishLocked(e, next)

	if len(e.subs) == 0 {
		delete(g.entries, e.key)
		if e.query.Policy == CacheFirst && next.Status == StatusReady && err == nil {
			g.retained.Set(e.key, next)
		}
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("Query failed",
			log.FieldQueryKey, e.key,
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err)
	}
	g.reportSession(err)
}

// execute collapses concurrent executions of the same key into one request.
func (g *Gateway) execute(key string, q Query, vars map[string]any) (json.RawMessage, error) {
	type result struct {
		data json.RawMessage
		err  error
	}
	v, _, _ := g.flights.Do(key, func() (any, error) {
		data, err := g.exec.Execute(g.ctx, graphql.Operation{Name: q.Name, Document: q.Document, Variables: vars})
		return result{data: data, err: err}, nil
	})
	r := v.(result)
	return r.data, r.err
}

func (g *Gateway) reportSession(err error) {
	if err == nil || !core.IsKind(err, core.KindSession) {
		return
	}
	g.mu.Lock()
	fn := g.onSessionError
	g.mu.Unlock()
	if fn != nil {
		fn(g.ctx, err)
	}
}

func (g *Gateway) unsubscribe(sub *Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()

	close(sub.ch)
	e, ok := g.entries[sub.key]
	if !ok {
		return
	}
	delete(e.subs, sub.id)
	metrics.SetSubscribers(e.query.Name, g.subscribersOf(e.query.Name))
	if len(e.subs) > 0 || e.snap.Status == StatusLoading {
		return
	}

	delete(g.entries, sub.key)
	if e.query.Policy == CacheFirst && e.snap.Status == StatusReady && e.snap.Err == nil {
		g.retained.Set(sub.key, e.snap)
	}
}

func (g *Gateway) subscribersOf(name string) int {
	n := 0
	for _, e := range g.entries {
		if e.query.Name == name {
			n += len(e.subs)
		}
	}
	return n
}
