package mockapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// catalog is the fixed disease and question set served to the mobile flow.
type catalog struct {
	diseases  []types.Disease
	questions []types.Question
	aiTypes   []types.AIParameterType
	prodTypes []types.ProductType
}

type orderBook struct {
	mu     sync.Mutex
	seq    int64
	orders map[int64]types.Order
}

func (s *Server) mountMobile(r chi.Router) {
	r.Route("/api/v1/mobile", func(r chi.Router) {
		r.Get("/products/{id}", s.handleMobileProduct)
		r.Get("/products/{id}/ai-parameter", s.handleMobileAIParameter)
		r.Get("/products/{id}/diseases", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, s.catalog.diseases)
		})
		r.Get("/diseases/search", s.handleDiseaseSearch)
		r.Get("/questions", s.handleQuestions)
		r.Post("/underwriting/evaluate", s.handleEvaluate)
		r.Post("/user-info", s.handleUserInfo)
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders/{id}", s.handleOrder)
	})
}

func (s *Server) productRecord(w http.ResponseWriter, r *http.Request) (types.Record, bool) {
	rec, ok := s.products.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "product not found")
	}
	return rec, ok
}

func (s *Server) handleMobileProduct(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.productRecord(w, r); ok {
		writeOK(w, rec)
	}
}

func (s *Server) handleMobileAIParameter(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.productRecord(w, r)
	if !ok {
		return
	}
	if p, ok := rec["aiParameter"]; ok && p != nil {
		writeOK(w, p)
		return
	}
	writeFail(w, codeNotFound, "product has no AI parameter")
}

func (s *Server) handleDiseaseSearch(w http.ResponseWriter, r *http.Request) {
	kw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("keyword")))
	out := []types.Disease{}
	for _, d := range s.catalog.diseases {
		if kw == "" || strings.Contains(strings.ToLower(d.Name), kw) || strings.Contains(strings.ToLower(d.Code), kw) {
			out = append(out, d)
		}
	}
	writeOK(w, out)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	want := map[int64]bool{}
	for _, v := range r.URL.Query()["diseaseIds"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeFail(w, codeInvalid, "diseaseIds must be numeric")
			return
		}
		want[id] = true
	}
	out := []types.Question{}
	for _, q := range s.catalog.questions {
		if want[q.DiseaseID] {
			out = append(out, q)
		}
	}
	writeOK(w, out)
}

// handleEvaluate always refers the case to manual review; the mock carries
// no rule engine.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluateRequest
	if !decodeBody(w, r, s.maxBody, &req) {
		return
	}
	if _, ok := s.products.get(strconv.FormatInt(req.ProductID, 10)); !ok {
		writeFail(w, codeNotFound, "product not found")
		return
	}
	if !req.UserInfo.Complete() {
		writeFail(w, codeInvalid, "applicant information is incomplete")
		return
	}
	writeOK(w, types.UnderwritingResult{
		Decision:      types.DecisionManualReview,
		Conclusion:    "referred to an underwriter",
		AdditionalFee: types.NewAmount(decimal.Zero),
		Reason:        strconv.Itoa(len(req.Diseases)) + " declared condition(s)",
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	var u types.UserInfo
	if !decodeBody(w, r, s.maxBody, &u) {
		return
	}
	if !u.Complete() {
		writeFail(w, codeInvalid, "applicant information is incomplete")
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req types.CreateOrderRequest
	if !decodeBody(w, r, s.maxBody, &req) {
		return
	}
	if req.Result.Decision == types.DecisionReject {
		writeFail(w, codeInvalid, "rejected applications cannot be ordered")
		return
	}
	s.orders.mu.Lock()
	s.orders.seq++
	o := types.Order{ID: s.orders.seq, ProductID: req.ProductID, UserInfo: req.UserInfo, Status: "pending", CreatedAt: now()}
	s.orders.orders[o.ID] = o
	s.orders.mu.Unlock()
	writeOK(w, o)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.orders.mu.Lock()
	o, ok := s.orders.orders[id]
	s.orders.mu.Unlock()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "order not found")
		return
	}
	writeOK(w, o)
}
