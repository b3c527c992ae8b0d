package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// ErrNoMessageID is returned under [PolicyFail] when there is no message to
// edit.
var ErrNoMessageID = errors.New("no webhook message id configured or stored")

// Policy decides what happens when there is no usable message to edit.
type Policy string

const (
	// PolicyCreate posts a new message and remembers its id.
	PolicyCreate Policy = "create"
	// PolicyFail reports an error and leaves the channel untouched.
	PolicyFail Policy = "fail"
)

// Action describes what a [Publisher.Publish] call did.
type Action string

const (
	ActionEdited    Action = "edited"
	ActionCreated   Action = "created"
	ActionRecreated Action = "recreated"
)

// Result is the outcome of a successful publish.
type Result struct {
	Action    Action
	MessageID string
}

// Sender is the subset of [*Client] the publisher needs.
type Sender interface {
	Create(ctx context.Context, msg Message) (string, error)
	Edit(ctx context.Context, id string, msg Message) error
}

// ///////////////////////////////////////////////
// Publisher
// ///////////////////////////////////////////////

// Publisher keeps one message current. The id comes from a static
// configuration value first, then from the [IDStore].
type Publisher struct {
	sender   Sender
	ids      *IDStore
	staticID string
	policy   Policy

	mu          sync.Mutex
	staticStale bool
}

// NewPublisher returns a publisher. An empty policy means [PolicyCreate].
func NewPublisher(sender Sender, ids *IDStore, staticID string, policy Policy) *Publisher {
	if policy == "" {
		policy = PolicyCreate
	}
	return &Publisher{
		sender:   sender,
		ids:      ids,
		staticID: strings.TrimSpace(staticID),
		policy:   policy,
	}
}

// ResolveID returns the id the next publish will edit, or "" when a new
// message would be created. A stored message that replaced the configured
// id wins over it, so a restart keeps editing the replacement.
func (p *Publisher) ResolveID() (string, error) {
	if p.staticID == "" || p.stale() {
		return p.ids.Load()
	}
	rec, err := p.ids.LoadRecord()
	if err == nil && rec.ID != "" && rec.Replaces == p.staticID {
		p.markStale()
		return rec.ID, nil
	}
	return p.staticID, nil
}

func (p *Publisher) stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staticStale
}

func (p *Publisher) markStale() {
	p.mu.Lock()
	p.staticStale = true
	p.mu.Unlock()
}

// CheckReady reports [ErrNoMessageID] when the policy is [PolicyFail] and
// there is nothing to edit.
func (p *Publisher) CheckReady() error {
	if p.policy != PolicyFail {
		return nil
	}
	id, err := p.ResolveID()
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNoMessageID
	}
	return nil
}

// Publish edits the current message, or creates one when there is none and
// the policy allows it.
func (p *Publisher) Publish(ctx context.Context, msg Message) (Result, error) {
	id, err := p.ResolveID()
	if err != nil {
		// An unreadable id file is treated like a missing one.
		slog.Warn("message id unavailable", "error", err)
		id = ""
	}

	if id == "" {
		if p.policy == PolicyFail {
			return Result{}, ErrNoMessageID
		}
		newID, err := p.create(ctx, msg)
		if err != nil {
			return Result{}, err
		}
		slog.Info("status message posted", "message_id", newID)
		return Result{Action: ActionCreated, MessageID: newID}, nil
	}

	err = p.sender.Edit(ctx, id, msg)
	if err == nil {
		return Result{Action: ActionEdited, MessageID: id}, nil
	}
	if !rejected(err) || p.policy == PolicyFail {
		return Result{}, fmt.Errorf("editing message %s: %w", id, err)
	}

	if IsNotFound(err) {
		slog.Warn("status message was deleted, posting a new one", "message_id", id)
	} else {
		slog.Warn("status message edit rejected, posting a new one", "message_id", id, "error", err)
	}
	if id == p.staticID {
		p.markStale()
	}
	newID, err := p.create(ctx, msg)
	if err != nil {
		return Result{}, err
	}
	if id == p.staticID {
		slog.Warn("configured message id no longer usable; update webhook.message_id", "old", id, "new", newID)
	}
	return Result{Action: ActionRecreated, MessageID: newID}, nil
}

// create posts msg and persists the new id, noting the configured id it
// replaces. A persist failure is logged; the message itself was published.
func (p *Publisher) create(ctx context.Context, msg Message) (string, error) {
	id, err := p.sender.Create(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}
	rec := StoredID{ID: id}
	if p.staticID != "" && p.stale() {
		rec.Replaces = p.staticID
	}
	if err := p.ids.SaveRecord(rec); err != nil {
		slog.Error("failed to persist message id", "message_id", id, "error", err)
	}
	return id, nil
}

// rejected reports whether err means the message itself cannot be edited,
// as opposed to a transient failure worth retrying next cycle.
func rejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
}
