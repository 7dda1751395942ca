package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

const defaultPerPage = 10

// mountResource registers the REST layout for c under prefix. public routes
// skip authentication; authed routes share the resource's permission object.
func (s *Server) mountResource(r chi.Router, prefix string, c *collection, public, authed func(chi.Router)) {
	r.Route(prefix, func(r chi.Router) {
		if public != nil {
			public(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken, s.authorize(c.name))
			r.Get("/", s.list(c))
			r.Post("/", s.create(c))
			r.Post("/batch-delete", s.batchDelete(c))
			r.Post("/import", s.importRows(c))
			r.Get("/export", s.export(c))
			if authed != nil {
				authed(r)
			}
			r.Get("/{id}", s.get(c))
			r.Put("/{id}", s.update(c))
			r.Delete("/{id}", s.remove(c))
			r.Get("/{id}/export", s.exportOne(c))
		})
	})
}

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("per_page"))
	if size == 0 {
		size, _ = strconv.Atoi(q.Get("pageSize"))
	}
	if size <= 0 {
		size = defaultPerPage
	}
	return page, size
}

func filters(r *http.Request) map[string]string {
	f := map[string]string{}
	if v := r.URL.Query().Get("status"); v != "" {
		f["status"] = v
	}
	return f
}

func (s *Server) list(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := pageParams(r)
		rows, total := c.list(r.URL.Query().Get("keyword"), filters(r), page, size)
		writeOK(w, types.Page[types.Record]{List: rows, Total: total, Page: page, PageSize: size})
	}
}

func (s *Server) get(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := c.get(chi.URLParam(r, "id"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, c.name+" not found")
			return
		}
		writeOK(w, rec)
	}
}

func (s *Server) create(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec types.Record
		if !decodeBody(w, r, s.maxBody, &rec) {
			return
		}
		if f := c.missing(rec); f != "" {
			writeFail(w, codeInvalid, f+" is required")
			return
		}
		code, _ := rec["code"].(string)
		if c.duplicate(code, "") {
			writeFail(w, codeConflict, fmt.Sprintf("code %q already exists", code))
			return
		}
		out := c.insert(rec)
		s.log.Debug().Str("resource", c.name).Str("id", out.ID()).Msg("created")
		writeOK(w, out)
	}
}

func (s *Server) update(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var patch types.Record
		if !decodeBody(w, r, s.maxBody, &patch) {
			return
		}
		code, _ := patch["code"].(string)
		if c.duplicate(code, id) {
			writeFail(w, codeConflict, fmt.Sprintf("code %q already exists", code))
			return
		}
		out, ok := c.update(id, patch)
		if !ok {
			writeJSONError(w, http.StatusNotFound, c.name+" not found")
			return
		}
		writeOK(w, out)
	}
}

func (s *Server) remove(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.remove(chi.URLParam(r, "id")) == 0 {
			writeJSONError(w, http.StatusNotFound, c.name+" not found")
			return
		}
		writeOK(w, nil)
	}
}

func (s *Server) batchDelete(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchDeleteRequest
		if !decodeBody(w, r, s.maxBody, &req) {
			return
		}
		if len(req.IDs) == 0 {
			writeFail(w, codeInvalid, "ids is required")
			return
		}
		writeOK(w, map[string]int{"deleted": c.remove(req.IDs...)})
	}
}

func (s *Server) export(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, _ := c.list(r.URL.Query().Get("keyword"), filters(r), 1, 0)
		s.writeWorkbook(w, c, rows, c.name+".xlsx")
	}
}

func (s *Server) exportOne(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := c.get(id)
		if !ok {
			writeFail(w, codeNotFound, c.name+" not found")
			return
		}
		s.writeWorkbook(w, c, []types.Record{rec}, c.name+"-"+id+".xlsx")
	}
}

func (s *Server) writeWorkbook(w http.ResponseWriter, c *collection, rows []types.Record, name string) {
	b, err := exportWorkbook(c.columns, rows)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	_, _ = w.Write(b)
}

// importRows reads an uploaded workbook into c. Rows missing a required
// column or repeating an existing code are counted as failures and recorded
// in the import log.
func (s *Server) importRows(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, rows, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		var details []types.ImportDetail
		failed := 0
		for i, rec := range rows {
			d := types.ImportDetail{Row: i + 2, Status: "success"}
			code, _ := rec["code"].(string)
			switch f := c.missing(rec); {
			case f != "":
				d.Status, d.Message = "failed", f+" is required"
				failed++
			case c.duplicate(code, ""):
				d.Status, d.Message = "failed", fmt.Sprintf("code %q already exists", code)
				failed++
			default:
				c.insert(rec)
			}
			details = append(details, d)
		}
		s.finishImport(w, c.name, name, len(rows), failed, details)
	}
}

// importRule attaches an uploaded rule workbook to rule id.
func (s *Server) importRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.rules.get(id); !ok {
		writeImportResult(w, false, "rule not found", 0, 0)
		return
	}
	name, rows, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	details := make([]types.ImportDetail, len(rows))
	for i := range rows {
		details[i] = types.ImportDetail{Row: i + 2, Status: "success"}
	}
	s.rules.update(id, types.Record{"has_data": true, "status": string(types.RuleImported)})
	s.finishImport(w, "rule", name, len(rows), 0, details)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []types.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeImportResult(w, false, "file is required", 0, 0)
		return "", nil, false
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".xlsx") {
		writeImportResult(w, false, "only .xlsx files are supported", 0, 0)
		return "", nil, false
	}
	rows, err := readWorkbook(file)
	if err != nil {
		writeImportResult(w, false, err.Error(), 0, 0)
		return "", nil, false
	}
	return hdr.Filename, rows, true
}

func (s *Server) finishImport(w http.ResponseWriter, kind, file string, total, failed int, details []types.ImportDetail) {
	batch := s.imports.add(kind, file, total, failed, details)
	s.log.Info().Str("batch", batch).Str("file", file).Int("total", total).Int("failed", failed).Msg("import")
	msg := fmt.Sprintf("imported %d of %d rows", total-failed, total)
	writeImportResult(w, failed < total || total == 0, msg, total, failed)
}

// writeImportResult answers in the {success, message} style import
// endpoints use instead of the envelope.
func writeImportResult(w http.ResponseWriter, ok bool, msg string, total, failed int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.ImportResult{Success: &ok, Message: msg, Total: total, Failed: failed})
}
