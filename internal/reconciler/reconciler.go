// Package reconciler converges one trigger's remote scheduler job and local
// route with its desired configuration.
//
//	Unconfigured -> Validating -> Syncing <-> Converged -> Deleting -> Removed
//
// Passes for the same trigger are serialised; a pass that arrives while
// another is in flight waits for it. Close and Delete never wait for an
// in-flight pass before cancelling timers and dropping routes: the pass
// checks liveness before it touches the route table again.
package reconciler

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/jobspec"
	"scheduler-webhook/internal/locks"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/scheduler"
	"scheduler-webhook/internal/triggers"
)

// emitTimeout bounds delivery of one local timer activation
const emitTimeout = 30 * time.Second

// RouteRegistrar is the part of the route table a reconciler mutates
type RouteRegistrar interface {
	Register(entry routing.Entry) error
	Unregister(owner string) int
}

// RouteBuilder renders the route entry serving a configuration
type RouteBuilder func(cfg triggers.Config) routing.Entry

// Deps are the collaborators shared by all reconcilers
type Deps struct {
	Credentials credentials.Resolver
	Routes      RouteRegistrar
	Schedulers  scheduler.Provider
	Emitter     triggers.Emitter
	Locks       locks.Manager
	Logger      logging.Logger
	// Target supplies the base URL, default time zone and, when set, a
	// pinned location. ProjectID comes from the credentials.
	Target jobspec.Target
	// TimerUnit is the length of one interval or delay second. Zero means
	// time.Second.
	TimerUnit time.Duration
}

type remoteRef struct {
	client scheduler.Client
	name   string
}

// Reconciler owns the remote job, route and local timer of one trigger
type Reconciler struct {
	id     string
	deps   Deps
	route  RouteBuilder
	logger logging.Logger

	// mu serialises passes and deletion
	mu sync.Mutex

	// liveMu guards closed, the timer and route registration. Timer fires
	// hold it for reading while they emit so Close waits them out.
	liveMu   sync.RWMutex
	closed   bool
	timer    *localTimer
	timerGen uint64

	stateMu    sync.RWMutex
	state      State
	cfg        triggers.Config
	remote     *remoteRef
	remoteSeen scheduler.RemoteState
	routeDesc  string
	timeZone   string
	lastErr    error
	lastSynced time.Time

	fires atomic.Int64
}

// New creates a reconciler in the Unconfigured state
func New(id string, deps Deps, route RouteBuilder) *Reconciler {
	if deps.Logger == nil {
		deps.Logger = logging.GetGlobalLogger()
	}
	if deps.Locks == nil {
		deps.Locks = locks.NewLocalManager()
	}
	if deps.TimerUnit <= 0 {
		deps.TimerUnit = time.Second
	}
	return &Reconciler{
		id:    id,
		deps:  deps,
		route: route,
		logger: deps.Logger.WithFields(
			logging.Field{Key: "trigger_id", Value: id},
			logging.Field{Key: "component", Value: "reconciler"},
		),
		state: StateUnconfigured,
	}
}

// ID returns the trigger id
func (r *Reconciler) ID() string { return r.id }

// State returns the current state
func (r *Reconciler) State() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// Config returns the configuration of the latest pass
func (r *Reconciler) Config() triggers.Config {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.cfg
}

func (r *Reconciler) setState(s State) {
	r.stateMu.Lock()
	r.setStateLocked(s)
	r.stateMu.Unlock()
}

// setStateLocked ignores transitions out of Deleting and Removed; only
// Delete moves a trigger past Deleting.
func (r *Reconciler) setStateLocked(s State) {
	if (r.state == StateDeleting || r.state.Terminal()) && s != StateRemoved {
		return
	}
	r.state = s
}

func (r *Reconciler) isClosed() bool {
	r.liveMu.RLock()
	defer r.liveMu.RUnlock()
	return r.closed
}

// Reconcile runs one pass for cfg. Validation failures leave the trigger
// Unconfigured without touching remote state or routes. Remote failures
// leave it Syncing and are returned as remote_call_failed errors; the next
// pass retries.
func (r *Reconciler) Reconcile(ctx context.Context, cfg triggers.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State().Terminal() {
		return triggers.ErrTriggerRemoved
	}
	if r.isClosed() {
		return triggers.ErrTriggerClosed
	}

	cfg.Normalize()
	if cfg.ID == "" {
		cfg.ID = r.id
	}

	r.stateMu.Lock()
	r.cfg = cfg
	r.setStateLocked(StateValidating)
	r.stateMu.Unlock()

	logger := r.logger.WithFields(
		logging.Field{Key: "trigger_name", Value: cfg.DisplayName()},
		logging.Field{Key: "mode", Value: string(cfg.Mode())},
	)

	if cfg.ID != r.id {
		return r.halt(logger, errors.ConfigInvalidError("trigger id cannot change").WithContext("trigger_id", r.id))
	}
	if err := cfg.Validate(); err != nil {
		return r.halt(logger, err)
	}

	switch cfg.Mode() {
	case triggers.ModeCron:
		return r.reconcileRemote(ctx, cfg, logger)
	default:
		return r.reconcileLocal(ctx, cfg, logger)
	}
}

// halt stops the trigger in Unconfigured. Only local timers are cancelled.
func (r *Reconciler) halt(logger logging.Logger, err error) error {
	r.stopTimer()
	r.stateMu.Lock()
	r.setStateLocked(StateUnconfigured)
	r.lastErr = err
	r.stateMu.Unlock()
	logger.Warn("Trigger configuration rejected", logging.Err(err))
	return err
}

// stall keeps the trigger in Syncing and records err
func (r *Reconciler) stall(logger logging.Logger, msg string, err error) error {
	r.stateMu.Lock()
	r.setStateLocked(StateSyncing)
	r.lastErr = err
	r.stateMu.Unlock()
	logger.Warn(msg, logging.Err(err))
	return err
}

func (r *Reconciler) converged(remoteSeen scheduler.RemoteState, tz string) {
	r.stateMu.Lock()
	r.setStateLocked(StateConverged)
	r.lastErr = nil
	r.lastSynced = time.Now()
	r.remoteSeen = remoteSeen
	r.timeZone = tz
	r.stateMu.Unlock()
}

func remoteErr(op string, err error) error {
	if errors.IsType(err, errors.ErrTypeRemoteCall) {
		return err
	}
	return errors.RemoteCallError(op, err)
}

func (r *Reconciler) reconcileRemote(ctx context.Context, cfg triggers.Config, logger logging.Logger) error {
	r.stopTimer()

	if err := cfg.ValidateRemote(); err != nil {
		return r.halt(logger, err)
	}
	if r.deps.Credentials == nil || r.deps.Schedulers == nil {
		return r.halt(logger, errors.CredentialsError(cfg.CredentialsRef, errors.ConfigError("no scheduler backend configured")))
	}

	creds, err := r.deps.Credentials.Resolve(ctx, cfg.CredentialsRef)
	if err != nil {
		return r.halt(logger, err)
	}
	client, err := r.deps.Schedulers.Client(ctx, creds)
	if err != nil {
		return r.halt(logger, err)
	}

	r.setState(StateSyncing)

	target := r.deps.Target
	target.ProjectID = client.ProjectID()
	if target.Location == "" {
		loc, err := client.ResolveLocation(ctx)
		if err != nil {
			return r.stall(logger, "Failed to resolve scheduler location", remoteErr("list locations", err))
		}
		target.Location = loc
	}

	desc, err := jobspec.Build(cfg, target)
	if err != nil {
		return r.halt(logger, err)
	}
	logger = logger.WithFields(logging.Field{Key: "job_name", Value: desc.JobName})

	r.stateMu.Lock()
	previous := r.remote
	r.remote = &remoteRef{client: client, name: desc.JobName}
	r.stateMu.Unlock()

	lock, err := r.deps.Locks.AcquireJobLock(ctx, desc.JobName)
	if err != nil {
		return r.stall(logger, "Failed to acquire job lock", err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("Failed to release job lock", logging.Err(err))
		}
	}()

	job := scheduler.JobFromDescriptor(desc)
	seen, _, err := scheduler.Observe(ctx, client, job)
	if err != nil {
		return r.stall(logger, "Failed to query remote job", remoteErr("get job", err))
	}

	if seen == scheduler.Absent {
		if _, err := client.CreateJob(ctx, desc.Parent, job); err != nil {
			return r.stall(logger, "Failed to create remote job", remoteErr("create job", err))
		}
		logger.Info("Remote job created", logging.Field{Key: "schedule", Value: desc.Schedule})
	} else {
		if _, err := client.UpdateJob(ctx, job); err != nil {
			return r.stall(logger, "Failed to update remote job", remoteErr("update job", err))
		}
		logger.Info("Remote job updated",
			logging.Field{Key: "schedule", Value: desc.Schedule},
			logging.Field{Key: "previous", Value: seen.String()})
	}

	if previous != nil && previous.name != desc.JobName {
		r.deleteRemote(ctx, previous, logger)
	}

	if err := r.bindRoute(cfg, false); err != nil {
		return r.stall(logger, "Failed to register route", err)
	}

	r.converged(seen, desc.TimeZone)
	return nil
}

func (r *Reconciler) reconcileLocal(ctx context.Context, cfg triggers.Config, logger logging.Logger) error {
	r.stateMu.Lock()
	previous := r.remote
	r.remote = nil
	r.stateMu.Unlock()

	// A trigger that moved off cron leaves no job behind.
	if previous != nil {
		r.deleteRemote(ctx, previous, logger)
	}

	if err := r.bindRoute(cfg, true); err != nil {
		return r.stall(logger, "Failed to register route", err)
	}

	r.converged(scheduler.Absent, "")
	logger.Info("Trigger converged")
	return nil
}

// bindRoute registers the route and, when arm is set, the local timer for
// cfg, unless the trigger was closed meanwhile.
func (r *Reconciler) bindRoute(cfg triggers.Config, arm bool) error {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()

	if r.closed {
		return triggers.ErrTriggerClosed
	}

	if r.deps.Routes != nil && r.route != nil {
		entry := r.route(cfg)
		if err := r.deps.Routes.Register(entry); err != nil {
			return err
		}
		r.stateMu.Lock()
		r.routeDesc = entry.Method + " " + routing.NormalizePath(entry.Pattern)
		r.stateMu.Unlock()
	}

	r.stopTimerLocked()
	if arm {
		r.armLocked(cfg)
	}
	return nil
}

func (r *Reconciler) deleteRemote(ctx context.Context, ref *remoteRef, logger logging.Logger) error {
	logger = logger.WithFields(logging.Field{Key: "job_name", Value: ref.name})

	lock, err := r.deps.Locks.AcquireJobLock(ctx, ref.name)
	if err != nil {
		logger.Warn("Failed to acquire job lock", logging.Err(err))
		return err
	}
	defer lock.Release(context.Background())

	_, err = ref.client.GetJob(ctx, ref.name)
	if stderrors.Is(err, scheduler.ErrJobNotFound) {
		logger.Debug("Remote job already absent")
		return nil
	}
	if err != nil {
		err = remoteErr("get job", err)
		logger.Warn("Failed to query remote job for deletion", logging.Err(err))
		return err
	}

	err = ref.client.DeleteJob(ctx, ref.name)
	if err != nil && !stderrors.Is(err, scheduler.ErrJobNotFound) {
		err = remoteErr("delete job", err)
		logger.Warn("Failed to delete remote job", logging.Err(err))
		return err
	}
	logger.Info("Remote job deleted")
	return nil
}

// Close cancels local timers and drops the trigger's routes. The remote job
// is kept so the next instance of the trigger adopts it. Close is
// synchronous and idempotent.
func (r *Reconciler) Close() {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()

	r.closed = true
	r.stopTimerLocked()
	if r.deps.Routes != nil {
		r.deps.Routes.Unregister(r.id)
	}
}

// Delete removes the trigger for good: routes and timers go immediately,
// then the remote job is queried and deleted once any in-flight pass
// completes. An already absent job is not an error. The trigger ends in
// Removed even when remote deletion fails; that failure is returned.
func (r *Reconciler) Delete(ctx context.Context) error {
	r.Close()

	if r.State().Terminal() {
		return nil
	}
	r.setState(StateDeleting)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State().Terminal() {
		return nil
	}

	r.stateMu.RLock()
	cfg := r.cfg
	ref := r.remote
	r.stateMu.RUnlock()

	logger := r.logger.WithFields(logging.Field{Key: "trigger_name", Value: cfg.DisplayName()})

	var err error
	if ref == nil && cfg.Mode() == triggers.ModeCron {
		ref, err = r.locateRemote(ctx, cfg)
		if err != nil {
			logger.Warn("Cannot locate remote job for deletion", logging.Err(err))
		}
	}
	if ref != nil {
		err = r.deleteRemote(ctx, ref, logger)
	}

	r.stateMu.Lock()
	r.setStateLocked(StateRemoved)
	r.remote = nil
	r.routeDesc = ""
	r.lastErr = err
	r.stateMu.Unlock()

	logger.Info("Trigger removed")
	return err
}

// locateRemote finds the job of a trigger whose last pass never got far
// enough to record it, e.g. after a restart with a failing scheduler.
func (r *Reconciler) locateRemote(ctx context.Context, cfg triggers.Config) (*remoteRef, error) {
	if cfg.CredentialsRef == "" || r.deps.Credentials == nil || r.deps.Schedulers == nil {
		return nil, nil
	}
	creds, err := r.deps.Credentials.Resolve(ctx, cfg.CredentialsRef)
	if err != nil {
		return nil, err
	}
	client, err := r.deps.Schedulers.Client(ctx, creds)
	if err != nil {
		return nil, err
	}
	loc := r.deps.Target.Location
	if loc == "" {
		if loc, err = client.ResolveLocation(ctx); err != nil {
			return nil, remoteErr("list locations", err)
		}
	}
	return &remoteRef{client: client, name: jobspec.JobName(client.ProjectID(), loc, cfg.ID)}, nil
}

// Status returns a snapshot for the admin API
func (r *Reconciler) Status() Status {
	closed := r.isClosed()

	r.liveMu.RLock()
	var next *time.Time
	if r.timer != nil {
		if t, ok := r.timer.nextFire(time.Now()); ok {
			next = &t
		}
	}
	r.liveMu.RUnlock()

	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	st := Status{
		TriggerID: r.id,
		State:     r.state,
		Mode:      r.cfg.Mode(),
		Closed:    closed,
		Route:     r.routeDesc,
		Fires:     r.fires.Load(),
		NextFire:  next,
	}
	if closed {
		st.Route = ""
	}
	if r.remote != nil {
		st.JobName = r.remote.name
	}
	if r.state == StateConverged && st.Mode == triggers.ModeCron {
		st.RemoteState = r.remoteSeen.String()
		if t, err := jobspec.NextFire(r.cfg.CronExpression, r.timeZone, time.Now()); err == nil {
			st.NextFire = &t
		}
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	if !r.lastSynced.IsZero() {
		t := r.lastSynced
		st.LastSynced = &t
	}
	return st
}

// StatusCode maps a pass error to the HTTP status the admin API answers with
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, triggers.ErrTriggerRemoved), stderrors.Is(err, triggers.ErrTriggerClosed):
		return http.StatusConflict
	}
	switch errors.GetType(err) {
	case errors.ErrTypeConfigInvalid, errors.ErrTypeValidation:
		return http.StatusUnprocessableEntity
	case errors.ErrTypeCredentials:
		return http.StatusFailedDependency
	case errors.ErrTypeRemoteCall:
		return http.StatusBadGateway
	case errors.ErrTypeRouteConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
