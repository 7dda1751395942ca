package questionnaire

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type fakeBackend struct {
	questionCalls [][]int64
	evaluated     []types.EvaluateRequest
	productErr    error
}

func (b *fakeBackend) Product(_ context.Context, id int64) (types.Product, error) {
	if b.productErr != nil {
		return types.Product{}, b.productErr
	}
	return types.Product{ID: id, Name: "Term life", Code: "TL"}, nil
}

func (b *fakeBackend) Diseases(context.Context, int64) ([]types.Disease, error) {
	return []types.Disease{
		{ID: 1, Name: "Hypertension", Code: "I10", Category: "Cardiovascular"},
		{ID: 2, Name: "Diabetes mellitus", Code: "E11", Category: "Endocrine"},
		{ID: 3, Name: "Hyperthyroidism", Code: "E05", Category: "Endocrine"},
	}, nil
}

func (b *fakeBackend) Questions(_ context.Context, ids []int64) ([]types.Question, error) {
	b.questionCalls = append(b.questionCalls, append([]int64(nil), ids...))
	var out []types.Question
	for _, id := range ids {
		out = append(out,
			types.Question{ID: id*10 + 1, DiseaseID: id, Type: types.QuestionSingle, Required: true},
			types.Question{ID: id*10 + 2, DiseaseID: id, Type: types.QuestionText},
		)
	}
	return out, nil
}

func (b *fakeBackend) Evaluate(_ context.Context, req types.EvaluateRequest) (types.UnderwritingResult, error) {
	b.evaluated = append(b.evaluated, req)
	return types.UnderwritingResult{Decision: types.DecisionManualReview, AdditionalFee: types.NewAmount(decimal.NewFromInt(0))}, nil
}

func (b *fakeBackend) CreateOrder(_ context.Context, req types.CreateOrderRequest) (types.Order, error) {
	return types.Order{ID: 99, ProductID: req.ProductID, UserInfo: req.UserInfo, Status: "pending"}, nil
}

var applicant = types.UserInfo{
	Name: "Li Lei", Age: 35, Gender: "male", Height: 175, Weight: 70,
	PolicyNumber: "P-1", IDType: "id_card", IDNumber: "110101199001011234", Phone: "13800000000",
}

func TestAddDisease_DedupesAndReloads(t *testing.T) {
	be := &fakeBackend{}
	f := New(be, nil)
	ctx := context.Background()

	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 1}))
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 2}))
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 1}))

	assert.Equal(t, [][]int64{{1}, {1, 2}}, be.questionCalls)
	assert.Len(t, f.State().Selected, 2)
	assert.Len(t, f.State().Questions, 4)
}

func TestRemoveDisease_DropsQuestionsAndOrphanAnswers(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	ctx := context.Background()
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 1}))
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 2}))
	f.SetAnswer(types.Answer{QuestionID: 11, Value: "yes"})
	f.SetAnswer(types.Answer{QuestionID: 21, Value: "no"})

	f.RemoveDisease(1)

	st := f.State()
	require.Len(t, st.Selected, 1)
	assert.Equal(t, int64(2), st.Selected[0].ID)
	for _, q := range st.Questions {
		assert.Equal(t, int64(2), q.DiseaseID)
	}
	assert.Equal(t, []types.Answer{{QuestionID: 21, Value: "no"}}, st.Answers)
}

func TestRemoveDisease_LeavesLoadedQuestionsIntact(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	ctx := context.Background()
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 1}))
	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 2}))
	qs, err := f.LoadQuestions(ctx)
	require.NoError(t, err)
	before := append([]types.Question(nil), qs...)

	f.RemoveDisease(1)

	assert.Equal(t, before, qs)
	assert.Len(t, f.State().Questions, 2)
}

func TestSetAnswer_ReplacesByQuestion(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	f.SetAnswer(types.Answer{QuestionID: 1, Value: "a"})
	f.SetAnswer(types.Answer{QuestionID: 1, Value: "b"})
	assert.Equal(t, []types.Answer{{QuestionID: 1, Value: "b"}}, f.State().Answers)
}

func TestIsComplete(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	assert.False(t, f.IsComplete(), "no questions loaded")

	require.NoError(t, f.AddDisease(context.Background(), types.Disease{ID: 3}))
	assert.False(t, f.IsComplete())
	f.SetAnswer(types.Answer{QuestionID: 32, Value: "optional"})
	assert.False(t, f.IsComplete())
	f.SetAnswer(types.Answer{QuestionID: 31, Value: "yes"})
	assert.True(t, f.IsComplete())
}

func TestEvaluate_Preconditions(t *testing.T) {
	be := &fakeBackend{}
	f := New(be, nil)
	ctx := context.Background()

	_, err := f.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoProduct)

	require.NoError(t, f.SetProduct(ctx, 7))
	_, err = f.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, ErrIncomplete.Error(), f.State().Err)

	require.NoError(t, f.AddDisease(ctx, types.Disease{ID: 1}))
	f.SetAnswer(types.Answer{QuestionID: 11, Value: "yes"})
	_, err = f.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrApplicantIncomplete)
	assert.Empty(t, be.evaluated)

	f.SetApplicant(applicant)
	res, err := f.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionManualReview, res.Decision)
	require.Len(t, be.evaluated, 1)
	assert.Equal(t, int64(7), be.evaluated[0].ProductID)
	assert.Equal(t, []int64{1}, be.evaluated[0].Diseases)
	assert.Empty(t, f.State().Err)

	order, err := f.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ProductID)
}

func TestPlaceOrder_NeedsAcceptableResult(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	_, err := f.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)

	f.st.Result = &types.UnderwritingResult{Decision: types.DecisionReject}
	_, err = f.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSetProduct_Failure(t *testing.T) {
	f := New(&fakeBackend{productErr: errors.New("boom")}, nil)
	err := f.LoadProduct(context.Background(), 4)
	require.Error(t, err)
	st := f.State()
	assert.Nil(t, st.Product)
	assert.False(t, st.Loading)
	assert.Equal(t, "failed to load product", st.Err)
}

func TestSearchDiseases(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	ctx := context.Background()
	_, err := f.LoadCatalog(ctx)
	assert.ErrorIs(t, err, ErrNoProduct)

	require.NoError(t, f.SetProduct(ctx, 1))
	_, err = f.LoadCatalog(ctx)
	require.NoError(t, err)

	assert.Len(t, f.SearchDiseases(""), 3)

	got := f.SearchDiseases("endocrine")
	ids := []int64{}
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []int64{2, 3}, ids)

	got = f.SearchDiseases("CARDIO")
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	assert.Empty(t, f.SearchDiseases("zzz"))
}

func TestReset(t *testing.T) {
	f := New(&fakeBackend{}, nil)
	require.NoError(t, f.SetProduct(context.Background(), 1))
	f.SetAnswer(types.Answer{QuestionID: 1, Value: "x"})
	f.Reset()
	assert.Equal(t, State{}, f.State())
}
