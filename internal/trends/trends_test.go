package trends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/models"
	"github.com/DeafMist/vnnews-radar/backend/internal/store/memstore"
)

var now = time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)

func article(guid, title, category string, age time.Duration) models.Article {
	return models.Article{
		GUID:             guid,
		Title:            title,
		ArrangedCategory: category,
		DownloadedAt:     now.Add(-age),
	}
}

func fixture() []models.Article {
	day := 24 * time.Hour
	return []models.Article{
		article("1", "Giá vàng", "kinh-te", day),
		article("2", "Giá vàng", "kinh-te", 2*day),
		article("3", "Bão Yagi", "thoi-su", day),
		article("4", "Giá vàng", "kinh-te", 10*day),
		article("5", "Bóng đá", "the-thao", 10*day),
		article("6", "Bóng đá", "the-thao", 11*day),
		article("7", "Giá vàng", "kinh-te", 40*day),
		article("8", "Tin lạ", models.UnknownCategory, day),
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		recent, historical int
		want               float64
	}{
		{3, 0, 3},
		{2, 1, 1},
		{1, 2, -0.5},
		{4, 4, 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Score(tt.recent, tt.historical))
	}
}

func TestComputeOverallAndPerCategory(t *testing.T) {
	sets := Compute(fixture(), now, DefaultOptions())

	require.Len(t, sets, 3)
	overall := sets[0]
	require.Empty(t, overall.Category)
	require.True(t, now.Equal(overall.Timestamp))
	require.Equal(t, []models.Keyword{
		{Keyword: "bão yagi", Count: 1},
		{Keyword: "giá vàng", Count: 1},
		{Keyword: "tin lạ", Count: 1},
	}, overall.Keywords)

	require.Equal(t, "kinh-te", sets[1].Category)
	require.Equal(t, []models.Keyword{{Keyword: "giá vàng", Count: 1}}, sets[1].Keywords)
	require.Equal(t, "thoi-su", sets[2].Category)
	require.Equal(t, []models.Keyword{{Keyword: "bão yagi", Count: 1}}, sets[2].Keywords)
}

func TestComputeRespectsLimits(t *testing.T) {
	opts := DefaultOptions()
	opts.TopOverall = 1
	sets := Compute(fixture(), now, opts)
	require.Equal(t, []models.Keyword{{Keyword: "bão yagi", Count: 1}}, sets[0].Keywords)
}

func TestComputeRanksGrowthAboveDecline(t *testing.T) {
	day := 24 * time.Hour
	articles := []models.Article{
		article("1", "Giá xăng", "kinh-te", day),
		article("2", "Giá xăng", "kinh-te", day),
		article("3", "Giá xăng", "kinh-te", day),
		article("4", "Giá xăng", "kinh-te", 9*day),
		article("5", "Lãi suất", "kinh-te", day),
		article("6", "Lãi suất", "kinh-te", 9*day),
		article("7", "Lãi suất", "kinh-te", 9*day),
	}
	sets := Compute(articles, now, DefaultOptions())
	require.Equal(t, []models.Keyword{
		{Keyword: "giá xăng", Count: 2},
		{Keyword: "lãi suất", Count: -0.5},
	}, sets[0].Keywords)
}

func TestComputeWithoutArticles(t *testing.T) {
	sets := Compute(nil, now, DefaultOptions())
	require.Len(t, sets, 1)
	require.Empty(t, sets[0].Keywords)
}

func TestJobSavesSets(t *testing.T) {
	st := memstore.New()
	for _, a := range fixture() {
		require.NoError(t, st.Insert(context.Background(), a))
	}

	job := NewJob(st, DefaultOptions(), nil)
	job.now = func() time.Time { return now }

	sets, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 3)

	latest, err := st.LatestKeywords(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Len(t, latest.Keywords, 3)

	byCat, err := st.LatestKeywords(context.Background(), "thoi-su")
	require.NoError(t, err)
	require.Equal(t, "bão yagi", byCat.Keywords[0].Keyword)

	none, err := st.LatestKeywords(context.Background(), "the-thao")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestJobPropagatesStoreErrors(t *testing.T) {
	st := memstore.New()
	st.SetErr(errors.New("down"))
	_, err := NewJob(st, DefaultOptions(), nil).RunOnce(context.Background())
	require.Error(t, err)
}
