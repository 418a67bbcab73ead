// Package webhook is the trigger node: it binds a reconciler to the host's
// create and close lifecycle and turns inbound requests, injections and
// local timer firings into activation events.
package webhook

import (
	"context"
	"net/http"
	"sync"
	"time"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/common/utils"
	"scheduler-webhook/internal/jobspec"
	"scheduler-webhook/internal/reconciler"
	"scheduler-webhook/internal/response"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/triggers"
)

// Node is one deployed trigger instance. A redeploy closes the node and
// creates a new one for the same id.
type Node struct {
	id      string
	rec     *reconciler.Reconciler
	decoder *bodyparser.Decoder
	emitter triggers.Emitter
	logger  logging.Logger

	mu            sync.RWMutex
	lastExecution *time.Time
}

// NewNode creates a node. deps.Emitter receives every activation.
func NewNode(id string, deps reconciler.Deps, decoder *bodyparser.Decoder) *Node {
	if deps.Logger == nil {
		deps.Logger = logging.GetGlobalLogger()
	}
	if decoder == nil {
		decoder = bodyparser.NewDecoder(0)
	}
	n := &Node{
		id:      id,
		decoder: decoder,
		emitter: deps.Emitter,
		logger: deps.Logger.WithFields(
			logging.Field{Key: "trigger_id", Value: id},
			logging.Field{Key: "component", Value: "webhook"},
		),
	}
	n.rec = reconciler.New(id, deps, n.route)
	return n
}

func (n *Node) ID() string { return n.id }

// Config returns the configuration of the latest reconciliation
func (n *Node) Config() triggers.Config { return n.rec.Config() }

// Status returns the reconciler status
func (n *Node) Status() reconciler.Status { return n.rec.Status() }

// LastExecution returns when the node last emitted an activation
func (n *Node) LastExecution() *time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastExecution
}

// OnCreate reconciles the initial configuration
func (n *Node) OnCreate(ctx context.Context, cfg triggers.Config) error {
	n.logger.Debug("Trigger created", logging.Field{Key: "trigger_name", Value: cfg.DisplayName()})
	return n.rec.Reconcile(ctx, cfg)
}

// OnUpdate reconciles an edited configuration
func (n *Node) OnUpdate(ctx context.Context, cfg triggers.Config) error {
	return n.rec.Reconcile(ctx, cfg)
}

// OnClose tears the node down. Timers and routes are gone before OnClose
// returns. When removed is set the remote job is deleted as well and the
// channel yields the outcome once that finishes; otherwise it yields nil
// immediately.
func (n *Node) OnClose(ctx context.Context, removed bool) <-chan error {
	done := make(chan error, 1)
	if !removed {
		n.rec.Close()
		done <- nil
		close(done)
		return done
	}

	n.rec.Close()
	go func() {
		defer close(done)
		done <- n.rec.Delete(ctx)
	}()
	return done
}

// Inject fires the trigger manually with payload
func (n *Node) Inject(ctx context.Context, payload interface{}) (string, error) {
	switch st := n.rec.Status(); {
	case st.State == reconciler.StateRemoved:
		return "", triggers.ErrTriggerRemoved
	case st.Closed:
		return "", triggers.ErrTriggerClosed
	}

	event := &triggers.ActivationEvent{
		MsgID:       utils.NewMessageID(),
		TriggerID:   n.id,
		TriggerName: n.rec.Config().DisplayName(),
		Source:      triggers.SourceInject,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
	if err := n.emit(ctx, event); err != nil {
		return "", err
	}
	return event.MsgID, nil
}

// OnInboundActivation emits the activation for a decoded inbound request.
// res, when set, is handed to the flow wrapped in a deprecation facade.
func (n *Node) OnInboundActivation(ctx context.Context, payload interface{}, meta *triggers.RequestMetadata, res response.Responder) (string, error) {
	event := &triggers.ActivationEvent{
		MsgID:       utils.NewMessageID(),
		TriggerID:   n.id,
		TriggerName: n.rec.Config().DisplayName(),
		Source:      triggers.SourceHTTP,
		Payload:     payload,
		Request:     meta,
		Timestamp:   time.Now(),
	}
	if res != nil {
		event.Response = response.NewFacade(res, n.logger)
	}
	if err := n.emit(ctx, event); err != nil {
		return "", err
	}
	return event.MsgID, nil
}

func (n *Node) emit(ctx context.Context, event *triggers.ActivationEvent) error {
	if n.emitter == nil {
		return triggers.ErrNoEmitter
	}
	ctx = logging.ContextWithTriggerID(ctx, n.id)
	if err := n.emitter.Emit(ctx, event); err != nil {
		return err
	}

	now := event.Timestamp
	n.mu.Lock()
	n.lastExecution = &now
	n.mu.Unlock()

	n.logger.Debug("Activation emitted",
		logging.Field{Key: "msgid", Value: event.MsgID},
		logging.Field{Key: "source", Value: string(event.Source)},
	)
	return nil
}

// route renders the route entry for cfg
func (n *Node) route(cfg triggers.Config) routing.Entry {
	chain := routing.Chain{}
	if cfg.RequiresUploadParsing && cfg.Method() == http.MethodPost {
		chain = append(chain, n.parseMultipart)
	}
	chain = append(chain, n.decodeBody, n.callback(cfg))

	return routing.Entry{
		Method:  cfg.Method(),
		Pattern: jobspec.RoutePattern(cfg),
		Owner:   n.id,
		Chain:   chain,
		OnError: n.onError,
	}
}
