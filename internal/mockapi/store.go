package mockapi

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// collection is one in-memory resource table. Rows are kept as untyped
// records so every resource shares the same handlers.
type collection struct {
	name     string
	required []string
	// columns is the export/import layout.
	columns []string
	// stringIDs renders ids as JSON strings (rules use string keys).
	stringIDs bool

	mu   sync.RWMutex
	seq  int64
	rows map[string]types.Record
}

func newCollection(name string, columns []string, required ...string) *collection {
	return &collection{name: name, columns: columns, required: required, rows: make(map[string]types.Record)}
}

func (c *collection) nextID() (string, any) {
	c.seq++
	id := strconv.FormatInt(c.seq, 10)
	if c.stringIDs {
		return id, id
	}
	return id, c.seq
}

func now() string { return time.Now().Format("2006-01-02 15:04:05") }

// missing returns the first required field that is absent or blank.
func (c *collection) missing(rec types.Record) string {
	for _, f := range c.required {
		v, ok := rec[f]
		if !ok || v == nil {
			return f
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return f
		}
	}
	return ""
}

func (c *collection) insert(rec types.Record) types.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec = rec.Clone()
	key, id := c.nextID()
	rec["id"] = id
	rec["created_at"] = now()
	rec["updated_at"] = rec["created_at"]
	if _, ok := rec["status"]; !ok {
		rec["status"] = string(types.StatusEnabled)
	}
	c.rows[key] = rec
	return rec.Clone()
}

func (c *collection) get(id string) (types.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rows[id]
	return r.Clone(), ok
}

// update merges patch into row id; the id itself never changes.
func (c *collection) update(id string, patch types.Record) (types.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[id]
	if !ok {
		return nil, false
	}
	for k, v := range patch {
		if k == "id" || k == "created_at" {
			continue
		}
		r[k] = v
	}
	r["updated_at"] = now()
	return r.Clone(), true
}

func (c *collection) remove(ids ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := c.rows[id]; ok {
			delete(c.rows, id)
			n++
		}
	}
	return n
}

// duplicate reports whether another row already uses code.
func (c *collection) duplicate(code, exceptID string) bool {
	if code == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, r := range c.rows {
		if id != exceptID && r["code"] == code {
			return true
		}
	}
	return false
}

// list filters by keyword (name or code) and exact-match fields, then pages.
func (c *collection) list(keyword string, filters map[string]string, page, size int) ([]types.Record, int) {
	c.mu.RLock()
	all := make([]types.Record, 0, len(c.rows))
	for _, r := range c.rows {
		if !matches(r, keyword, filters) {
			continue
		}
		all = append(all, r.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		a, _ := strconv.ParseInt(all[i].ID(), 10, 64)
		b, _ := strconv.ParseInt(all[j].ID(), 10, 64)
		return a < b
	})
	total := len(all)
	if size <= 0 {
		return all, total
	}
	from := (page - 1) * size
	if from >= total || from < 0 {
		return []types.Record{}, total
	}
	to := from + size
	if to > total {
		to = total
	}
	return all[from:to], total
}

func matches(r types.Record, keyword string, filters map[string]string) bool {
	if keyword != "" {
		kw := strings.ToLower(keyword)
		name, _ := r["name"].(string)
		code, _ := r["code"].(string)
		if !strings.Contains(strings.ToLower(name), kw) && !strings.Contains(strings.ToLower(code), kw) {
			return false
		}
	}
	for k, v := range filters {
		if s, _ := r[k].(string); s != v {
			return false
		}
	}
	return true
}
