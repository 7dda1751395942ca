package mockapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type importLog struct {
	mu      sync.Mutex
	seq     int
	records []types.ImportRecord
	details map[string][]types.ImportDetail
}

func newImportLog() *importLog {
	return &importLog{details: make(map[string][]types.ImportDetail)}
}

func (l *importLog) add(kind, file string, total, failed int, details []types.ImportDetail) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	batch := fmt.Sprintf("IMP%s%04d", time.Now().Format("20060102"), l.seq)
	status := "completed"
	if failed > 0 {
		status = "partial"
	}
	if total > 0 && failed == total {
		status = "failed"
	}
	// newest first
	l.records = append([]types.ImportRecord{{
		BatchNo: batch, Type: kind, FileName: file, Status: status,
		Total: total, Success: total - failed, Failed: failed, CreatedAt: now(),
	}}, l.records...)
	l.details[batch] = details
	return batch
}

func (s *Server) handleImportRecords(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	s.imports.mu.Lock()
	all := append([]types.ImportRecord(nil), s.imports.records...)
	s.imports.mu.Unlock()

	from, to := (page-1)*size, page*size
	if from > len(all) {
		from = len(all)
	}
	if to > len(all) {
		to = len(all)
	}
	writeOK(w, types.Page[types.ImportRecord]{List: all[from:to], Total: len(all), Page: page, PageSize: size})
}

func (s *Server) handleImportDetails(w http.ResponseWriter, r *http.Request) {
	batch := chi.URLParam(r, "batch")
	s.imports.mu.Lock()
	d, ok := s.imports.details[batch]
	s.imports.mu.Unlock()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "import batch not found")
		return
	}
	writeOK(w, d)
}
