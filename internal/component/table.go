package component

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

const DefaultPageSize = 10

// Lister fetches one page from the list endpoint.
type Lister interface {
	Do(ctx context.Context, method, path string, opts *apiclient.Options) (*types.Envelope, error)
}

type TableConfig struct {
	Bus      *events.Bus
	Client   Lister
	Endpoint string
	PageSize int
	Logger   *zerolog.Logger
	// Context is used for reloads triggered by bus events.
	Context context.Context
}

// Table keeps the rows of the current page and the user's selection.
type Table struct {
	Base
	client   Lister
	endpoint string
	pageSize int
	ctx      context.Context

	mu       sync.Mutex
	rows     []types.Record
	total    int
	page     int
	query    url.Values
	selected map[int]bool
}

// NewTable reloads on TableRefresh, SearchSubmitted and SearchReset.
func NewTable(cfg TableConfig) (*Table, error) {
	if cfg.Bus == nil || cfg.Client == nil {
		return nil, fmt.Errorf("table: bus and client are required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("table: list endpoint is required")
	}
	t := &Table{
		Base:     newBase(cfg.Bus, cfg.Logger, "table"),
		client:   cfg.Client,
		endpoint: cfg.Endpoint,
		pageSize: cfg.PageSize,
		ctx:      cfg.Context,
		page:     1,
		query:    url.Values{},
		selected: map[int]bool{},
	}
	if t.pageSize <= 0 {
		t.pageSize = DefaultPageSize
	}
	if t.ctx == nil {
		t.ctx = context.Background()
	}
	reload := func(params url.Values, replace bool) {
		if err := t.reload(t.ctx, params, replace); err != nil {
			t.log.Debug().Err(err).Msg("reload failed")
		}
	}
	t.track(
		events.Listen(cfg.Bus, func(e events.TableRefresh) { reload(e.Params, e.Params != nil) }),
		events.Listen(cfg.Bus, func(e events.SearchSubmitted) { reload(e.Params, true) }),
		events.Listen(cfg.Bus, func(events.SearchReset) { reload(url.Values{}, true) }),
	)
	return t, nil
}

func (t *Table) reload(ctx context.Context, params url.Values, replace bool) error {
	if replace {
		t.mu.Lock()
		t.query = cloneValues(params)
		t.page = 1
		t.mu.Unlock()
	}
	return t.Load(ctx)
}

// Load fetches the current page with the current query.
func (t *Table) Load(ctx context.Context) error {
	t.mu.Lock()
	q := cloneValues(t.query)
	page := t.page
	t.mu.Unlock()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(t.pageSize))

	env, err := t.client.Do(ctx, http.MethodGet, t.endpoint, &apiclient.Options{Query: q})
	var p types.Page[types.Record]
	if err == nil {
		err = env.Decode(&p)
	}
	if err != nil {
		t.emit(events.TableLoadFailed{Err: err})
		return err
	}
	rows := p.Rows()
	t.mu.Lock()
	t.rows = rows
	t.total = p.Total
	t.selected = map[int]bool{}
	t.mu.Unlock()
	t.emit(events.TableLoaded{Rows: rows, Total: p.Total})
	return nil
}

// SetPage moves to page n (1-based) and loads it.
func (t *Table) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	t.mu.Lock()
	t.page = n
	t.mu.Unlock()
	return t.Load(ctx)
}

// Sort sets the sort column and order ("asc" or "desc") and reloads.
func (t *Table) Sort(ctx context.Context, column, order string) error {
	t.mu.Lock()
	t.query.Set("sort", column)
	t.query.Set("order", order)
	t.mu.Unlock()
	return t.Load(ctx)
}

func (t *Table) Rows() []types.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.Record(nil), t.rows...)
}

func (t *Table) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *Table) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// Select toggles the selection of the given row indexes.
func (t *Table) Select(indexes ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, i := range indexes {
		if i < 0 || i >= len(t.rows) {
			continue
		}
		if t.selected[i] {
			delete(t.selected, i)
		} else {
			t.selected[i] = true
		}
	}
}

// Selections returns the selected rows in table order.
func (t *Table) Selections() []types.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := make([]int, 0, len(t.selected))
	for i := range t.selected {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]types.Record, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.rows[i])
	}
	return out
}

// Action emits a TableAction for row index.
func (t *Table) Action(a events.Action, index int) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.rows) {
		t.mu.Unlock()
		return fmt.Errorf("row %d out of range", index)
	}
	row := t.rows[index].Clone()
	t.mu.Unlock()
	t.emit(events.TableAction{Action: a, Row: row})
	return nil
}

// DeleteSelected emits TableBatchDelete for the selected rows. An empty
// selection is still emitted so the coordinator can warn.
func (t *Table) DeleteSelected() {
	sel := t.Selections()
	ids := make([]string, 0, len(sel))
	for _, r := range sel {
		ids = append(ids, r.ID())
	}
	t.emit(events.TableBatchDelete{IDs: ids})
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
