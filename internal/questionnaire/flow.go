// Package questionnaire drives the applicant-facing underwriting flow: pick a
// product, select health conditions, answer the questions attached to them,
// fill the applicant profile and ask the back-end for a decision.
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

var (
	ErrNoProduct           = errors.New("no product selected")
	ErrIncomplete          = errors.New("please answer all required questions")
	ErrApplicantIncomplete = errors.New("please complete the applicant information")
	ErrNoResult            = errors.New("no underwriting result")
	ErrRejected            = errors.New("application was rejected")
)

// Backend is the subset of the mobile API the flow needs. *api.Underwriting
// satisfies it.
type Backend interface {
	Product(ctx context.Context, id int64) (types.Product, error)
	Diseases(ctx context.Context, productID int64) ([]types.Disease, error)
	Questions(ctx context.Context, diseaseIDs []int64) ([]types.Question, error)
	Evaluate(ctx context.Context, req types.EvaluateRequest) (types.UnderwritingResult, error)
	CreateOrder(ctx context.Context, req types.CreateOrderRequest) (types.Order, error)
}

// State is a snapshot of the flow.
type State struct {
	ProductID int64
	Product   *types.Product
	Selected  []types.Disease
	Questions []types.Question
	Answers   []types.Answer
	Applicant types.UserInfo
	Result    *types.UnderwritingResult
	Loading   bool
	Err       string
}

type Flow struct {
	be  Backend
	log zerolog.Logger

	mu      sync.Mutex
	st      State
	catalog []types.Disease
}

func New(be Backend, logger *zerolog.Logger) *Flow {
	f := &Flow{be: be, log: zerolog.Nop()}
	if logger != nil {
		f.log = logger.With().Str("component", "questionnaire").Logger()
	}
	return f
}

// State returns a copy of the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.st
	s.Selected = append([]types.Disease(nil), s.Selected...)
	s.Questions = append([]types.Question(nil), s.Questions...)
	s.Answers = append([]types.Answer(nil), s.Answers...)
	return s
}

func (f *Flow) setLoading(on bool, msg string) {
	f.mu.Lock()
	f.st.Loading = on
	if on {
		f.st.Err = ""
	} else if msg != "" {
		f.st.Err = msg
	}
	f.mu.Unlock()
}

// SetProduct selects the product and loads it.
func (f *Flow) SetProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.st.ProductID = id
	f.mu.Unlock()

	f.setLoading(true, "")
	p, err := f.be.Product(ctx, id)
	if err != nil {
		f.setLoading(false, "failed to load product")
		return fmt.Errorf("load product %d: %w", id, err)
	}
	f.setLoading(false, "")
	f.mu.Lock()
	f.st.Product = &p
	f.mu.Unlock()
	f.log.Debug().Int64("product", id).Str("name", p.Name).Msg("product loaded")
	return nil
}

// LoadProduct lets the flow act as the mobile router's product loader.
func (f *Flow) LoadProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	same := f.st.ProductID == id && f.st.Product != nil
	f.mu.Unlock()
	if same {
		return nil
	}
	return f.SetProduct(ctx, id)
}

// AddDisease selects d and reloads questions. Already-selected diseases are ignored.
func (f *Flow) AddDisease(ctx context.Context, d types.Disease) error {
	f.mu.Lock()
	for _, s := range f.st.Selected {
		if s.ID == d.ID {
			f.mu.Unlock()
			return nil
		}
	}
	f.st.Selected = append(f.st.Selected, d)
	f.mu.Unlock()
	_, err := f.LoadQuestions(ctx)
	return err
}

// RemoveDisease drops the disease, its questions and any answers left
// without a question.
func (f *Flow) RemoveDisease(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel := make([]types.Disease, 0, len(f.st.Selected))
	for _, d := range f.st.Selected {
		if d.ID != id {
			sel = append(sel, d)
		}
	}
	f.st.Selected = sel

	qs := make([]types.Question, 0, len(f.st.Questions))
	keep := make(map[int64]bool)
	for _, q := range f.st.Questions {
		if q.DiseaseID != id {
			qs = append(qs, q)
			keep[q.ID] = true
		}
	}
	f.st.Questions = qs

	as := make([]types.Answer, 0, len(f.st.Answers))
	for _, a := range f.st.Answers {
		if keep[a.QuestionID] {
			as = append(as, a)
		}
	}
	f.st.Answers = as
}

// LoadQuestions fetches the questions of the selected diseases. With nothing
// selected it returns nil without a request.
func (f *Flow) LoadQuestions(ctx context.Context) ([]types.Question, error) {
	f.mu.Lock()
	ids := make([]int64, len(f.st.Selected))
	for i, d := range f.st.Selected {
		ids[i] = d.ID
	}
	f.mu.Unlock()
	if len(ids) == 0 {
		return nil, nil
	}

	f.setLoading(true, "")
	qs, err := f.be.Questions(ctx, ids)
	if err != nil {
		f.setLoading(false, "failed to load questions")
		return nil, fmt.Errorf("load questions: %w", err)
	}
	f.setLoading(false, "")
	f.mu.Lock()
	f.st.Questions = qs
	f.mu.Unlock()
	return slices.Clone(qs), nil
}

// SetAnswer stores a, replacing any earlier answer to the same question.
func (f *Flow) SetAnswer(a types.Answer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.st.Answers {
		if f.st.Answers[i].QuestionID == a.QuestionID {
			f.st.Answers[i] = a
			return
		}
	}
	f.st.Answers = append(f.st.Answers, a)
}

// SetApplicant stores the applicant profile.
func (f *Flow) SetApplicant(u types.UserInfo) {
	f.mu.Lock()
	f.st.Applicant = u
	f.mu.Unlock()
}

// IsComplete reports whether questions are loaded and every required one is answered.
func (f *Flow) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete()
}

func (f *Flow) complete() bool {
	if len(f.st.Questions) == 0 {
		return false
	}
	answered := make(map[int64]bool, len(f.st.Answers))
	for _, a := range f.st.Answers {
		answered[a.QuestionID] = true
	}
	for _, q := range f.st.Questions {
		if q.Required && !answered[q.ID] {
			return false
		}
	}
	return true
}

// Evaluate submits the questionnaire and stores the decision.
func (f *Flow) Evaluate(ctx context.Context) (types.UnderwritingResult, error) {
	f.mu.Lock()
	var pre error
	switch {
	case f.st.ProductID == 0:
		pre = ErrNoProduct
	case !f.complete():
		pre = ErrIncomplete
	case !f.st.Applicant.Complete():
		pre = ErrApplicantIncomplete
	}
	if pre != nil {
		f.st.Err = pre.Error()
		f.mu.Unlock()
		return types.UnderwritingResult{}, pre
	}
	req := types.EvaluateRequest{
		ProductID: f.st.ProductID,
		Answers:   append([]types.Answer(nil), f.st.Answers...),
		UserInfo:  f.st.Applicant,
	}
	for _, d := range f.st.Selected {
		req.Diseases = append(req.Diseases, d.ID)
	}
	f.mu.Unlock()

	f.setLoading(true, "")
	res, err := f.be.Evaluate(ctx, req)
	if err != nil {
		f.setLoading(false, "evaluation failed")
		return types.UnderwritingResult{}, fmt.Errorf("evaluate: %w", err)
	}
	f.setLoading(false, "")
	f.mu.Lock()
	f.st.Result = &res
	f.mu.Unlock()
	f.log.Info().Int64("product", req.ProductID).Str("decision", string(res.Decision)).Msg("evaluated")
	return res, nil
}

// PlaceOrder creates an order from a non-rejected result.
func (f *Flow) PlaceOrder(ctx context.Context) (types.Order, error) {
	f.mu.Lock()
	res, pid, who := f.st.Result, f.st.ProductID, f.st.Applicant
	f.mu.Unlock()
	if res == nil {
		return types.Order{}, ErrNoResult
	}
	if res.Decision == types.DecisionReject {
		return types.Order{}, ErrRejected
	}
	return f.be.CreateOrder(ctx, types.CreateOrderRequest{ProductID: pid, UserInfo: who, Result: *res})
}

// Reset returns the flow to its initial state. The disease catalogue is kept.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.st = State{}
	f.mu.Unlock()
}

// LoadCatalog fetches the selectable diseases of the current product.
func (f *Flow) LoadCatalog(ctx context.Context) ([]types.Disease, error) {
	f.mu.Lock()
	pid := f.st.ProductID
	f.mu.Unlock()
	if pid == 0 {
		return nil, ErrNoProduct
	}
	ds, err := f.be.Diseases(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("load diseases: %w", err)
	}
	f.mu.Lock()
	f.catalog = ds
	f.mu.Unlock()
	return ds, nil
}

// SearchDiseases ranks the loaded catalogue against keyword, matching name,
// code and category case-insensitively. An empty keyword returns everything.
func (f *Flow) SearchDiseases(keyword string) []types.Disease {
	f.mu.Lock()
	catalog := append([]types.Disease(nil), f.catalog...)
	f.mu.Unlock()

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return catalog
	}
	words := make([]string, len(catalog))
	for i, d := range catalog {
		words[i] = strings.Join([]string{d.Name, d.Code, d.Category}, " ")
	}
	ranks := fuzzy.RankFindNormalizedFold(keyword, words)
	sort.Stable(ranks)
	out := make([]types.Disease, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, catalog[r.OriginalIndex])
	}
	return out
}
