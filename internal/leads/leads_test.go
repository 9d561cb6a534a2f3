package leads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/dedup"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/store/storetest"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		candidate model.CandidateLead
		want      float64
	}{
		{"name only", model.CandidateLead{CompanyName: "A"}, 0.50},
		{"phone", model.CandidateLead{CompanyName: "A", Phone: "5512345678"}, 0.80},
		{"email", model.CandidateLead{CompanyName: "A", Email: "a@b.mx"}, 0.70},
		{"website", model.CandidateLead{CompanyName: "A", Website: "https://a.mx"}, 0.65},
		{"address", model.CandidateLead{CompanyName: "A", Address: "Calle 1"}, 0.60},
		{"category", model.CandidateLead{CompanyName: "A", Category: "Restaurantes"}, 0.55},
		{"phone and email", model.CandidateLead{CompanyName: "A", Phone: "5512345678", Email: "a@b.mx"}, 1.00},
		{
			"all fields capped",
			model.CandidateLead{
				CompanyName: "A", Phone: "5512345678", Email: "a@b.mx",
				Website: "https://a.mx", Address: "Calle 1", Category: "Restaurantes",
			},
			1.00,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(&tc.candidate), 1e-9)
		})
	}
}

func TestScore_MoreFieldsNeverLower(t *testing.T) {
	base := model.CandidateLead{CompanyName: "A", Phone: "5512345678"}
	richer := base
	richer.Category = "Restaurantes"
	assert.GreaterOrEqual(t, Score(&richer), Score(&base))
}

func newSaver(fake *storetest.Fake) *Saver {
	checker := dedup.NewChecker(cache.NewMemory(), fake, time.Hour)
	return NewSaver(fake, checker, nil)
}

func TestSaver_PersistsValidCandidate(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()
	saver := newSaver(fake)

	res, err := saver.Save(ctx, model.SourcePaginasAmarillas, "session-1", &model.CandidateLead{
		CompanyName: "Taquería El Progreso",
		Phone:       "5512345678",
		Category:    "Restaurantes",
	})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	require.NotNil(t, res.Lead)
	assert.NotEmpty(t, res.Lead.UUID)
	assert.InDelta(t, 0.85, res.Lead.ConfidenceScore, 1e-9)
	assert.Equal(t, model.ValidationPending, res.Lead.ValidationStatus)
	assert.Equal(t, model.LeadStatusNew, res.Lead.Status)
	assert.Equal(t, "session-1", res.Lead.SessionID)
	assert.Len(t, fake.Leads(), 1)
}

func TestSaver_DropsInvalidCandidate(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()
	saver := newSaver(fake)

	// Website alone does not satisfy the gate.
	res, err := saver.Save(ctx, model.SourcePaginasAmarillas, "session-1", &model.CandidateLead{
		CompanyName: "Solo Web SA",
		Website:     "https://soloweb.mx",
	})
	require.NoError(t, err)
	assert.True(t, res.Invalid)
	assert.False(t, res.IsNew)
	assert.Empty(t, fake.Leads())
}

func TestSaver_SkipsDuplicate(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()
	saver := newSaver(fake)

	candidate := &model.CandidateLead{CompanyName: "Ferretería La Central", Phone: "5587654321"}

	first, err := saver.Save(ctx, model.SourceSeccionAmarilla, "session-1", candidate)
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := saver.Save(ctx, model.SourceSeccionAmarilla, "session-1", candidate)
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.False(t, second.Invalid)
	assert.Len(t, fake.Leads(), 1)
}

func TestSaver_UniqueRaceTreatedAsDuplicate(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()

	// Cold dedup tier pointed at a different fake: the duplicate check
	// misses, and the insert hits the unique index.
	checker := dedup.NewChecker(cache.NewMemory(), storetest.New(), time.Hour)
	saver := NewSaver(fake, checker, nil)

	require.NoError(t, fake.SaveLead(ctx, &model.Lead{
		CompanyName: "Dentista Sonrisa",
		Phone:       "8112345678",
		Source:      model.SourceSeccionAmarilla,
	}))

	res, err := saver.Save(ctx, model.SourceSeccionAmarilla, "session-1", &model.CandidateLead{
		CompanyName: "Dentista Sonrisa",
		Phone:       "8112345678",
	})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.False(t, res.Invalid)
}
