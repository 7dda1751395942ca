package crud

import (
	"context"
	"errors"

	"github.com/oscarka/underwritingsystem2/internal/events"
)

// Bind subscribes the coordinator to the page events. Operations triggered by
// events run on their own goroutine; Close waits for them.
func (c *Coordinator) Bind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) > 0 {
		return
	}
	c.closed = false
	c.subs = append(c.subs,
		events.Listen(c.bus, func(e events.TableAction) { c.onTableAction(e) }),
		events.Listen(c.bus, func(e events.FormSubmit) {
			c.spawn("submit", func(ctx context.Context) error {
				_, err := c.Submit(ctx, e.Data)
				return err
			})
		}),
		events.Listen(c.bus, func(e events.SearchSubmitted) { c.Refresh(e.Params) }),
		events.Listen(c.bus, func(events.SearchReset) { c.Refresh(nil) }),
		events.Listen(c.bus, func(e events.TableBatchDelete) {
			c.spawn("batchDelete", func(ctx context.Context) error { return c.BatchDelete(ctx, e.IDs) })
		}),
		events.Listen(c.bus, func(e events.ImportStart) {
			c.spawn("import", func(ctx context.Context) error {
				_, err := c.Import(ctx, e.File)
				return err
			})
		}),
		events.Listen(c.bus, func(e events.ExportStart) {
			c.spawn("export", func(ctx context.Context) error {
				_, err := c.Export(ctx, e.Params)
				return err
			})
		}),
		// the form closed itself; only the state needs to follow
		events.Listen(c.bus, func(events.ModalClose) {
			if c.State().Mode != events.ModeList {
				c.closeForm(false)
			}
		}),
	)
}

func (c *Coordinator) onTableAction(e events.TableAction) {
	id := e.Row.ID()
	switch e.Action {
	case events.ActionView:
		c.spawn("view", func(ctx context.Context) error {
			_, err := c.View(ctx, id)
			return err
		})
	case events.ActionEdit:
		c.spawn("edit", func(ctx context.Context) error {
			_, err := c.Edit(ctx, id)
			return err
		})
	case events.ActionDelete:
		c.spawn("delete", func(ctx context.Context) error { return c.Delete(ctx, id) })
	default:
		c.log.Debug().Str("action", string(e.Action)).Msg("unknown table action")
	}
}

// spawn runs fn in the background. Failures were already shown to the user.
// After Close nothing new is started.
func (c *Coordinator) spawn(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug().Str("op", name).Msg("coordinator closed, event dropped")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		err := fn(c.base)
		switch {
		case err == nil:
		case errors.Is(err, ErrDeclined):
			c.log.Debug().Str("op", name).Msg("declined")
		default:
			c.log.Debug().Err(err).Str("op", name).Msg("event-driven operation failed")
		}
	}()
}

// Wait blocks until every event-driven operation has finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Close unsubscribes from the bus and waits for running operations.
func (c *Coordinator) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.closed = true
	c.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
	c.wg.Wait()
}
