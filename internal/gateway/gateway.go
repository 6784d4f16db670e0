// Package gateway submits the two operator actions to the backend and
// reports each outcome as a notification.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/floorwatch/backend/internal/models"
)

// Success sentinels. Any other response message is a failure.
const (
	MessageLiveRunUpdated = "Live Run Updated"
	MessageNoteSaved      = "Note Saved"
)

const defaultRequestTimeout = 15 * time.Second

// Doer sends one backend request. *backend.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, path string, body any) (models.Envelope, error)
}

// Reassignment is the body of a live-run reassignment.
type Reassignment struct {
	Component string `json:"component"`
	Mould     string `json:"mould"`
	Color     string `json:"color"`
}

// NoteRequest is the body of a note submission.
type NoteRequest struct {
	Type         string           `json:"type"`
	Note         string           `json:"note"`
	CreationDate models.Timestamp `json:"creationDate"`
}

// Result is the outcome of one submission. Skipped means another
// submission for the same action was still in flight, so nothing was sent.
type Result struct {
	Succeeded bool   `json:"succeeded"`
	Skipped   bool   `json:"skipped,omitempty"`
	Message   string `json:"message"`
}

// Options tune a Gateway.
type Options struct {
	// Timeout bounds each request. Requests are detached from the caller's
	// context, so this is the only bound.
	Timeout       time.Duration
	Logger        *slog.Logger
	OnActionState func(key string, state ActionState)
}

// Gateway performs the side-effecting actions.
type Gateway struct {
	client   Doer
	notifier Notifier
	timeout  time.Duration
	log      *slog.Logger
	actions  *tracker
}

func New(client Doer, notifier Notifier, opts Options) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		client:   client,
		notifier: notifier,
		timeout:  timeout,
		log:      log.With("component", "gateway"),
		actions:  newTracker(opts.OnActionState),
	}
}

// ReassignKey and NoteKey name the action controls of one machine.
func ReassignKey(machineNumber string) string { return "reassign:" + machineNumber }
func NoteKey(machineUID string) string        { return "note:" + machineUID }

// ReassignLiveRun changes the component, mould and color a machine runs.
func (g *Gateway) ReassignLiveRun(ctx context.Context, machineNumber string, r Reassignment) Result {
	return g.submit(ctx, submission{
		key:      ReassignKey(machineNumber),
		method:   http.MethodPatch,
		path:     "/live-run/current/" + url.PathEscape(machineNumber),
		body:     r,
		sentinel: MessageLiveRunUpdated,
		title:    "Live run",
	})
}

// AppendNote adds an operational note to a machine.
func (g *Gateway) AppendNote(ctx context.Context, machineUID string, n NoteRequest) Result {
	if n.CreationDate.IsZero() {
		n.CreationDate = models.NewTimestamp(time.Now())
	}
	return g.submit(ctx, submission{
		key:      NoteKey(machineUID),
		method:   http.MethodPost,
		path:     "/live-run/notes/" + url.PathEscape(machineUID),
		body:     n,
		sentinel: MessageNoteSaved,
		title:    "Note",
	})
}

// ActionStatus reports the state of one action control.
func (g *Gateway) ActionStatus(key string) ActionStatus {
	return g.actions.status(key)
}

type submission struct {
	key      string
	method   string
	path     string
	body     any
	sentinel string
	title    string
}

func (g *Gateway) submit(ctx context.Context, s submission) Result {
	if !g.actions.begin(s.key) {
		g.log.Debug("submission already in flight", "action", s.key)
		return Result{Skipped: true, Message: "submission already in progress"}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	res := g.send(ctx, s)
	g.notify(s, res)
	g.actions.finish(s.key, res)
	return res
}

func (g *Gateway) send(ctx context.Context, s submission) Result {
	env, err := g.client.Do(ctx, s.method, s.path, s.body)
	if err != nil {
		g.log.Warn("action request failed", "action", s.key, "err", err)
		msg := env.Message
		if msg == "" {
			msg = err.Error()
		}
		return Result{Message: msg}
	}
	if env.Message != s.sentinel {
		g.log.Warn("action rejected", "action", s.key, "message", env.Message)
		return Result{Message: env.Message}
	}
	g.log.Info("action succeeded", "action", s.key)
	return Result{Succeeded: true, Message: env.Message}
}

func (g *Gateway) notify(s submission, res Result) {
	if g.notifier == nil {
		return
	}
	n := models.Notification{
		Kind:    models.NotificationSuccess,
		Icon:    IconSuccess,
		Title:   s.title,
		Message: res.Message,
	}
	if !res.Succeeded {
		n.Kind = models.NotificationFailure
		n.Icon = IconFailure
		if n.Message == "" {
			n.Message = fmt.Sprintf("%s request failed", s.title)
		}
	}
	g.notifier.Notify(n)
}
