// Package crud turns generic table, form and search events into REST calls
// and routes the outcome back onto the event bus as toasts, refreshes and
// modal signals.
package crud

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/api"
	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// DefaultExportName is used when the export response suggests no filename.
const DefaultExportName = "export.xlsx"

// State is the coordinator's view state. CurrentItem is only set outside list mode.
type State struct {
	Mode        events.Mode
	CurrentItem types.Record
	Loading     bool
}

// Op is one in-flight operation.
type Op struct {
	ID      uuid.UUID
	Name    string
	Started time.Time
}

// Coordinator owns the state of one CRUD page.
type Coordinator struct {
	endpoints Endpoints
	msgs      Messages
	form      FormRules
	client    Doer
	bus       *events.Bus
	confirm   Confirmer
	saver     FileSaver
	online    apiclient.Connectivity
	now       func() time.Time
	base      context.Context
	log       zerolog.Logger

	mu       sync.Mutex
	state    State
	inflight map[uuid.UUID]Op
	subs     []events.Subscription
	closed   bool
	wg       sync.WaitGroup
}

func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		endpoints: cfg.Endpoints,
		msgs:      cfg.Messages.withDefaults(),
		form:      cfg.Form,
		client:    cfg.Client,
		bus:       cfg.Bus,
		confirm:   cfg.Confirm,
		saver:     cfg.Saver,
		online:    cfg.Connectivity,
		now:       cfg.Now,
		base:      cfg.Context,
		log:       zerolog.Nop(),
		state:     State{Mode: events.ModeList},
		inflight:  make(map[uuid.UUID]Op),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "crud").Logger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.base == nil {
		c.base = context.Background()
	}
	if c.online == nil {
		c.online = apiclient.AlwaysOnline{}
	}
	return c, nil
}

// State returns a snapshot of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.CurrentItem = s.CurrentItem.Clone()
	return s
}

// InFlight lists running operations, oldest first.
func (c *Coordinator) InFlight() []Op {
	c.mu.Lock()
	out := make([]Op, 0, len(c.inflight))
	for _, op := range c.inflight {
		out = append(out, op)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// setState is the only place state changes. A list mode always drops the current item.
func (c *Coordinator) setState(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	if c.state.Mode == events.ModeList {
		c.state.CurrentItem = nil
	}
	c.state.Loading = len(c.inflight) > 0
	s := c.state
	c.mu.Unlock()
	c.log.Debug().Str("mode", string(s.Mode)).Bool("loading", s.Loading).Msg("state updated")
	c.bus.Emit(events.StateChanged{Mode: s.Mode, CurrentItem: s.CurrentItem.Clone(), Loading: s.Loading})
}

// begin registers an in-flight operation; the returned func ends it.
func (c *Coordinator) begin(name string) func() {
	op := Op{ID: uuid.New(), Name: name, Started: c.now()}
	c.setState(func(*State) { c.inflight[op.ID] = op })
	return func() {
		c.setState(func(*State) { delete(c.inflight, op.ID) })
	}
}

func (c *Coordinator) toast(level events.Level, msg string) {
	c.bus.Emit(events.Toast{Level: level, Message: msg})
}

// preflight fails fast when the connectivity check reports offline.
func (c *Coordinator) preflight(ctx context.Context) error {
	if c.online.Online(ctx) {
		return nil
	}
	return apiclient.ErrOffline
}

// report shows the classified error, then the operation-specific message.
func (c *Coordinator) report(err error, opMsg string) {
	var ie *api.ImportError
	var ue *url.Error
	switch {
	case errors.Is(err, apiclient.ErrOffline):
		c.toast(events.LevelError, c.msgs.NetworkError)
	case apiclient.IsUnauthorized(err):
		c.toast(events.LevelError, c.msgs.SessionExpired)
		if !apiclient.IsSignalled(err) {
			c.bus.Emit(events.Unauthorized{})
		}
	case apiclient.IsForbidden(err):
		c.toast(events.LevelError, c.msgs.Unauthorized)
	case apiclient.IsNotFound(err):
		c.toast(events.LevelError, c.msgs.NotFound)
	case apiclient.StatusOf(err) == http.StatusInternalServerError:
		c.toast(events.LevelError, c.msgs.ServerError)
	case errors.As(err, &ie):
		msg := ie.Result.Message
		if msg == "" {
			msg = c.msgs.ImportError
		}
		c.toast(events.LevelError, msg)
	case apiclient.StatusOf(err) != 0 || apiclient.IsBusiness(err):
		c.toast(events.LevelError, apiclient.Message(err))
	case errors.As(err, &ue):
		c.toast(events.LevelError, c.msgs.NetworkError)
	default:
		c.toast(events.LevelError, err.Error())
	}
	if opMsg != "" {
		c.toast(events.LevelError, opMsg)
	}
	c.log.Warn().Err(err).Msg("operation failed")
}

func (c *Coordinator) validatePayload(data types.Record) error {
	if data == nil {
		return &ValidationError{Message: c.msgs.ValidationError}
	}
	for _, f := range c.form.RequiredFields {
		if missing(data[f.Name]) {
			label := f.Label
			if label == "" {
				label = f.Name
			}
			return &ValidationError{Field: f.Name, Message: label + " is required"}
		}
	}
	if c.form.Validate != nil {
		if err := c.form.Validate(data); err != nil {
			msg := err.Error()
			if msg == "" {
				msg = c.msgs.ValidationError
			}
			return &ValidationError{Message: msg}
		}
	}
	return nil
}

func missing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}

func (c *Coordinator) send(ctx context.Context, method, path string, body any) (*types.Envelope, error) {
	if err := c.preflight(ctx); err != nil {
		return nil, err
	}
	return c.client.Do(ctx, method, path, &apiclient.Options{Body: body})
}

// Add opens an empty form in create mode.
func (c *Coordinator) Add() {
	c.setState(func(s *State) {
		s.Mode = events.ModeCreate
		s.CurrentItem = nil
	})
	c.bus.Emit(events.ModalOpen{Mode: events.ModeCreate})
}

// Cancel returns to list mode and closes the form.
func (c *Coordinator) Cancel() { c.closeForm(true) }

func (c *Coordinator) closeForm(emit bool) {
	c.setState(func(s *State) { s.Mode = events.ModeList })
	if emit {
		c.bus.Emit(events.ModalClose{})
	}
}

// Refresh asks the table to reload with params.
func (c *Coordinator) Refresh(params url.Values) {
	c.bus.Emit(events.TableRefresh{Params: params})
}

// Create validates data and posts it to the create endpoint.
func (c *Coordinator) Create(ctx context.Context, data types.Record) (*types.Envelope, error) {
	return c.save(ctx, "create", http.MethodPost, c.endpoints.Create, "", data, c.msgs.CreateSuccess, c.msgs.CreateError)
}

// Update validates data and puts it to the update endpoint of id.
func (c *Coordinator) Update(ctx context.Context, id string, data types.Record) (*types.Envelope, error) {
	return c.save(ctx, "update", http.MethodPut, c.endpoints.Update, id, data, c.msgs.UpdateSuccess, c.msgs.UpdateError)
}

func (c *Coordinator) save(ctx context.Context, op, method, tmpl, id string, data types.Record, okMsg, errMsg string) (*types.Envelope, error) {
	if tmpl == "" {
		return nil, noEndpoint(op)
	}
	if err := c.validatePayload(data); err != nil {
		c.toast(events.LevelError, err.Error())
		return nil, err
	}
	defer c.begin(op)()
	env, err := c.send(ctx, method, expand(tmpl, id, nil), data)
	if err != nil {
		c.report(err, errMsg)
		return nil, err
	}
	c.toast(events.LevelSuccess, okMsg)
	c.Refresh(nil)
	c.closeForm(true)
	return env, nil
}

// Delete removes id after confirmation. A declined confirmation returns ErrDeclined.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if c.endpoints.Delete == "" {
		return noEndpoint("delete")
	}
	if !c.confirm.Confirm(ctx, c.msgs.DeleteConfirm) {
		return ErrDeclined
	}
	defer c.begin("delete")()
	if _, err := c.send(ctx, http.MethodDelete, expand(c.endpoints.Delete, id, nil), nil); err != nil {
		c.report(err, c.msgs.DeleteError)
		return err
	}
	c.toast(events.LevelSuccess, c.msgs.DeleteSuccess)
	c.Refresh(nil)
	return nil
}

// BatchDelete removes ids in one request. An empty selection only warns.
func (c *Coordinator) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		c.toast(events.LevelWarning, c.msgs.SelectItems)
		return nil
	}
	if c.endpoints.BatchDelete == "" {
		return noEndpoint("batch delete")
	}
	if !c.confirm.Confirm(ctx, c.msgs.DeleteConfirm) {
		return ErrDeclined
	}
	defer c.begin("batchDelete")()
	if _, err := c.send(ctx, http.MethodPost, c.endpoints.BatchDelete, types.BatchDeleteRequest{IDs: ids}); err != nil {
		c.report(err, c.msgs.BatchDeleteError)
		return err
	}
	c.toast(events.LevelSuccess, c.msgs.BatchDeleteSuccess)
	c.Refresh(nil)
	return nil
}

// View fetches id and opens it read-only.
func (c *Coordinator) View(ctx context.Context, id string) (types.Record, error) {
	return c.open(ctx, events.ModeView, id)
}

// Edit fetches id and opens it for editing.
func (c *Coordinator) Edit(ctx context.Context, id string) (types.Record, error) {
	return c.open(ctx, events.ModeEdit, id)
}

func (c *Coordinator) open(ctx context.Context, mode events.Mode, id string) (types.Record, error) {
	if c.endpoints.View == "" {
		return nil, noEndpoint(string(mode))
	}
	defer c.begin(string(mode))()
	env, err := c.send(ctx, http.MethodGet, expand(c.endpoints.View, id, nil), nil)
	if err != nil {
		c.report(err, c.msgs.LoadError)
		return nil, err
	}
	var item types.Record
	if err := env.Decode(&item); err != nil {
		c.report(err, c.msgs.LoadError)
		return nil, err
	}
	if len(item) == 0 {
		c.log.Warn().Str("id", id).Msg("empty detail")
		c.toast(events.LevelError, c.msgs.LoadError)
		return nil, ErrEmptyRecord
	}
	c.setState(func(s *State) {
		s.Mode = mode
		s.CurrentItem = item
	})
	c.bus.Emit(events.ModalOpen{Mode: mode, Data: item.Clone()})
	return item, nil
}

// Submit saves data according to the current mode. Outside create and edit it does nothing.
func (c *Coordinator) Submit(ctx context.Context, data types.Record) (*types.Envelope, error) {
	s := c.State()
	switch s.Mode {
	case events.ModeCreate:
		return c.Create(ctx, data)
	case events.ModeEdit:
		return c.Update(ctx, s.CurrentItem.ID(), data)
	}
	c.log.Debug().Str("mode", string(s.Mode)).Msg("submit ignored")
	return nil, nil
}

// Import uploads file. A nil file only warns.
func (c *Coordinator) Import(ctx context.Context, file *events.Upload) (types.ImportResult, error) {
	var res types.ImportResult
	if file == nil {
		c.toast(events.LevelWarning, c.msgs.SelectFile)
		return res, nil
	}
	if c.endpoints.Import == "" {
		return res, noEndpoint("import")
	}
	defer c.begin("import")()
	if err := c.preflight(ctx); err != nil {
		c.report(err, c.msgs.ImportError)
		return res, err
	}
	resp, err := c.client.Upload(ctx, c.endpoints.Import, file.Name, file.Content, nil)
	if err == nil {
		res, err = api.DecodeImport(resp.Body)
	}
	if err != nil {
		c.report(err, c.msgs.ImportError)
		return res, err
	}
	c.toast(events.LevelSuccess, c.msgs.ImportSuccess)
	if res.Details != "" {
		c.toast(events.LevelInfo, res.Details)
	}
	c.Refresh(nil)
	return res, nil
}

// Export downloads the export filtered by params and hands it to the saver.
// It returns the filename used.
func (c *Coordinator) Export(ctx context.Context, params url.Values) (string, error) {
	if c.endpoints.Export == "" {
		return "", noEndpoint("export")
	}
	defer c.begin("export")()
	if err := c.preflight(ctx); err != nil {
		c.report(err, c.msgs.ExportError)
		return "", err
	}
	resp, err := c.client.Download(ctx, expand(c.endpoints.Export, "", params),
		&apiclient.Options{Headers: http.Header{"Accept": {"application/octet-stream"}}})
	if err != nil {
		c.report(err, c.msgs.ExportError)
		return "", err
	}
	name := resp.Filename(DefaultExportName)
	if err := c.saver.Save(ctx, name, resp.Body); err != nil {
		c.report(err, c.msgs.ExportError)
		return name, err
	}
	c.toast(events.LevelSuccess, c.msgs.ExportSuccess)
	return name, nil
}
