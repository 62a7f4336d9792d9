package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
	"github.com/zeus-insurance/zeus-agent/internal/store/storetest"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

// seedCorpus stores unit vectors whose cosine similarity to (1,0) is known:
// 0.95, 0.83 (Coverage), 0.90 (Exclusion), 0.30 (Coverage).
func seedCorpus(t *testing.T, st store.Store) {
	t.Helper()
	_, err := st.InsertDocuments(context.Background(), []model.PolicyDocument{
		{Section: model.SectionCoverage, Content: "covered-095", Embedding: []float32{0.95, 0.3122499}},
		{Section: model.SectionCoverage, Content: "covered-083", Embedding: []float32{0.83, 0.5577634}},
		{Section: model.SectionExclusion, Content: "excluded-090", Embedding: []float32{0.90, 0.4358899}},
		{Section: model.SectionCoverage, Content: "covered-030", Embedding: []float32{0.30, 0.9539392}},
		{Section: model.SectionCoverage, Content: "not-embedded"},
	})
	require.NoError(t, err)
}

func newTestSearcher(t *testing.T) (*Searcher, *mockEmbedder) {
	t.Helper()
	st := storetest.NewSQLite(t)
	seedCorpus(t, st)
	emb := &mockEmbedder{}
	return NewSearcher(emb, st, Options{Threshold: 0.5, TopK: 5, Dimension: 2}), emb
}

func contents(r *Result) []string {
	var out []string
	for _, m := range r.Matches {
		out = append(out, m.Document.Content)
	}
	return out
}

func TestSearch_ThresholdAndOrdering(t *testing.T) {
	s, emb := newTestSearcher(t)
	emb.On("EmbedQuery", mock.Anything, "flood cover").Return([]float32{1, 0}, nil).Once()

	res, err := s.Search(context.Background(), Query{Text: "  flood cover "})
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, []string{"covered-095", "excluded-090", "covered-083"}, contents(res))
	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].Similarity, res.Matches[i].Similarity)
	}
	assert.InDelta(t, 0.83, res.Matches[2].Similarity, 1e-4)
	emb.AssertExpectations(t)
}

func TestSearch_SectionFilterAppliesBeforeRanking(t *testing.T) {
	s, emb := newTestSearcher(t)
	emb.On("EmbedQuery", mock.Anything, "what is covered").Return([]float32{1, 0}, nil).Once()

	res, err := s.Search(context.Background(), Query{Text: "what is covered", Section: model.SectionCoverage, TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"covered-095", "covered-083"}, contents(res))
	for _, m := range res.Matches {
		assert.Equal(t, model.SectionCoverage, m.Document.Section)
	}
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	s, emb := newTestSearcher(t)
	emb.On("EmbedQuery", mock.Anything, "racing").Return([]float32{0, -1}, nil).Once()

	res, err := s.Search(context.Background(), Query{Text: "racing"})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.NotNil(t, res.Matches)
}

func TestSearch_EmbedderFailureIsUpstream(t *testing.T) {
	s, emb := newTestSearcher(t)
	emb.On("EmbedQuery", mock.Anything, "anything").Return(nil, errors.New("503 unavailable")).Once()

	_, err := s.Search(context.Background(), Query{Text: "anything"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestSearch_Validation(t *testing.T) {
	s, emb := newTestSearcher(t)

	_, err := s.Search(context.Background(), Query{Text: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Search(context.Background(), Query{Text: "x", Section: "Pricing"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	emb.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
}

func TestSearch_FitsQueryWidth(t *testing.T) {
	s, emb := newTestSearcher(t)
	emb.On("EmbedQuery", mock.Anything, "wide").Return([]float32{1, 0, 0.5, 0.5}, nil).Once()

	res, err := s.Search(context.Background(), Query{Text: "wide"})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 3)
}

func TestFitDimension(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, FitDimension([]float32{1, 2, 3}, 2))
	assert.Equal(t, []float32{1, 2, 0, 0}, FitDimension([]float32{1, 2}, 4))
	assert.Equal(t, []float32{1, 2}, FitDimension([]float32{1, 2}, 2))
	assert.Equal(t, []float32{1, 2}, FitDimension([]float32{1, 2}, 0))

	// Truncation must not alias the caller's backing array for appends.
	src := []float32{1, 2, 3}
	out := FitDimension(src, 2)
	out = append(out, 9)
	assert.Equal(t, float32(3), src[2])
	assert.Len(t, out, 3)
}
