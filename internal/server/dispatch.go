package server

import (
	"context"
	"fmt"
	"time"

	"github.com/chiehyu/grouptask/internal/command"
	"github.com/chiehyu/grouptask/internal/engine"
	"github.com/chiehyu/grouptask/internal/novelty"
	"github.com/chiehyu/grouptask/internal/reply"
)

// Dispatcher turns one chat message into one reply text. Every failure
// becomes a user-facing message; the returned error is reserved for
// faults worth logging (the user still gets the fallback text).
type Dispatcher struct {
	engine *engine.Engine
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher over the engine.
func NewDispatcher(e *engine.Engine) *Dispatcher {
	return &Dispatcher{engine: e, now: time.Now}
}

// Dispatch parses and executes text within the group scope. The empty
// string means the message was not a command and needs no reply.
func (d *Dispatcher) Dispatch(ctx context.Context, groupID, text string) (string, error) {
	if !command.IsCommand(text) {
		return "", nil
	}

	cmd, err := command.Parse(text)
	if err != nil {
		return reply.Error(err), nil
	}

	switch c := cmd.(type) {
	case command.Create:
		task, err := d.engine.Create(ctx, groupID, c)
		if err != nil {
			return d.fail(err)
		}
		return reply.Created(task), nil

	case command.BatchCreate:
		tasks, err := d.engine.BatchCreate(ctx, groupID, c)
		if err != nil {
			return d.fail(err)
		}
		return reply.BatchCreated(tasks), nil

	case command.CreateRecurring:
		res, err := d.engine.CreateRecurring(ctx, groupID, c)
		if err != nil {
			return d.fail(err)
		}
		return reply.RecurringCreated(res), nil

	case command.CancelRecurring:
		task, err := d.engine.CancelRecurring(ctx, groupID, c.TaskID)
		if err != nil {
			return d.fail(err)
		}
		return reply.RecurrenceCancelled(task), nil

	case command.Complete:
		res, err := d.engine.Complete(ctx, groupID, c.TaskID)
		if err != nil {
			return d.fail(err)
		}
		return reply.Completed(res), nil

	case command.List:
		tasks, err := d.engine.List(ctx, groupID, c.Mention)
		if err != nil {
			return d.fail(err)
		}
		title := "全部任務"
		if c.Mention != "" {
			title = fmt.Sprintf("%s 的任務", c.Mention)
		}
		return reply.TaskList(title, tasks, d.now()), nil

	case command.Detail:
		task, err := d.engine.Detail(ctx, groupID, c.TaskID)
		if err != nil {
			return d.fail(err)
		}
		return reply.TaskDetail(task, d.now()), nil

	case command.Update:
		task, err := d.engine.Update(ctx, groupID, c)
		if err != nil {
			return d.fail(err)
		}
		return reply.Updated(task), nil

	case command.Delete:
		task, err := d.engine.Delete(ctx, groupID, c.TaskID)
		if err != nil {
			return d.fail(err)
		}
		return reply.Deleted(task), nil

	case command.Divination:
		return reply.Divination(c.Question, novelty.Draw()), nil

	case command.Lottery:
		return reply.Lottery(c.Options, novelty.Pick(c.Options)), nil

	case command.Help:
		return reply.Help(), nil
	}

	return reply.InternalError, fmt.Errorf("unhandled command %T", cmd)
}

// fail maps an engine failure to its reply text, surfacing unexpected
// faults to the caller for logging.
func (d *Dispatcher) fail(err error) (string, error) {
	msg := reply.Error(err)
	if msg == reply.InternalError {
		return msg, err
	}
	return msg, nil
}
