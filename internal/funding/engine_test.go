package funding

import (
	"context"
	"testing"
	"time"

	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIdea(t *testing.T) {
	t.Run("end date is creation time plus duration", func(t *testing.T) {
		f := newFixture(t)
		idea := f.createIdea(t, 1000, 30)

		assert.NotEmpty(t, idea.Id)
		assert.Equal(t, model.IdeaStatusOpen, idea.Status)
		assert.True(t, idea.CreatedAt.Equal(t0))
		assert.Equal(t, 30*24*time.Hour, idea.EndDate.Sub(idea.CreatedAt))

		stored, err := f.store.GetIdea(context.Background(), idea.Id)
		require.NoError(t, err)
		assert.True(t, stored.EndDate.Equal(stored.CreatedAt.Add(30*24*time.Hour)))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		f := newFixture(t)
		valid := NewIdea{
			OwnerAddress: ownerAddress,
			Title:        "Idea",
			MoneyNeeded:  decimal.NewFromInt(10),
			DurationDays: 1,
		}

		cases := map[string]func(n *NewIdea){
			"bad owner":     func(n *NewIdea) { n.OwnerAddress = "alice" },
			"empty title":   func(n *NewIdea) { n.Title = "  " },
			"zero goal":     func(n *NewIdea) { n.MoneyNeeded = decimal.Zero },
			"negative goal": func(n *NewIdea) { n.MoneyNeeded = decimal.NewFromInt(-5) },
			"zero duration": func(n *NewIdea) { n.DurationDays = 0 },
			"bad image url": func(n *NewIdea) { n.ImageURL = "not a url" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				in := valid
				mutate(&in)
				_, err := f.engine.CreateIdea(context.Background(), in)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.ErrorIs(t, err, ErrInvalidIdea)
			})
		}

		ideas, err := f.store.ListIdeas(context.Background(), repository.IdeaQuery{})
		require.NoError(t, err)
		assert.Empty(t, ideas)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("open until the end date has passed", func(t *testing.T) {
		f := newFixture(t)
		idea := f.createIdea(t, 1000, 30)

		f.clock.Set(idea.EndDate)
		got, err := f.engine.GetIdea(ctx, idea.Id)
		require.NoError(t, err)
		assert.Equal(t, model.IdeaStatusOpen, got.Status)
	})

	t.Run("expires and writes through after the end date", func(t *testing.T) {
		f := newFixture(t)
		idea := f.createIdea(t, 1000, 30)

		f.clock.Set(idea.EndDate.Add(time.Second))
		got, err := f.engine.GetIdea(ctx, idea.Id)
		require.NoError(t, err)
		assert.Equal(t, model.IdeaStatusExpired, got.Status)

		stored, err := f.store.GetIdea(ctx, idea.Id)
		require.NoError(t, err)
		assert.Equal(t, model.IdeaStatusExpired, stored.Status)
	})

	t.Run("funded ideas never expire", func(t *testing.T) {
		f := newFixture(t)
		idea := f.createIdea(t, 1000, 1)
		_, err := f.store.UpdateIdeaStatus(ctx, idea.Id, model.IdeaStatusOpen, model.IdeaStatusFunded)
		require.NoError(t, err)

		f.clock.Set(idea.EndDate.Add(48 * time.Hour))
		got, err := f.engine.GetIdea(ctx, idea.Id)
		require.NoError(t, err)
		assert.Equal(t, model.IdeaStatusFunded, got.Status)
	})

	t.Run("stale copy defers to the store", func(t *testing.T) {
		f := newFixture(t)
		idea := f.createIdea(t, 1000, 1)
		_, err := f.store.UpdateIdeaStatus(ctx, idea.Id, model.IdeaStatusOpen, model.IdeaStatusFunded)
		require.NoError(t, err)

		f.clock.Set(idea.EndDate.Add(time.Hour))
		got, err := f.engine.Reconcile(ctx, idea)
		require.NoError(t, err)
		assert.Equal(t, model.IdeaStatusFunded, got.Status)
	})

	t.Run("unknown idea", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.GetIdea(ctx, "missing")
		assert.ErrorIs(t, err, ErrIdeaNotFound)
	})
}

func TestListIdeas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old := f.createIdea(t, 100, 1)
	f.clock.Set(t0.Add(time.Hour))
	fresh := f.createIdea(t, 200, 30)

	f.clock.Set(t0.Add(48 * time.Hour))

	ideas, err := f.engine.ListIdeas(ctx, repository.IdeaQuery{})
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, fresh.Id, ideas[0].Id)
	assert.Equal(t, old.Id, ideas[1].Id)
	assert.Equal(t, model.IdeaStatusExpired, ideas[1].Status)

	expired, err := f.engine.ListIdeas(ctx, repository.IdeaQuery{Statuses: []model.IdeaStatus{model.IdeaStatusExpired}})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.Id, expired[0].Id)
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idea := f.createIdea(t, 1000, 30)

	f.expectPayment(250, "0xa1")
	_, err := f.engine.Invest(ctx, f.session, idea.Id, decimal.NewFromInt(250))
	require.NoError(t, err)
	f.expectPayment(250, "0xa2")
	_, err = f.engine.Invest(ctx, f.session, idea.Id, decimal.NewFromInt(250))
	require.NoError(t, err)

	f.clock.Set(t0.Add(29 * 24 * time.Hour))
	p, err := f.engine.Progress(ctx, idea.Id)
	require.NoError(t, err)
	assert.Equal(t, model.IdeaStatusOpen, p.Status)
	assert.True(t, p.Raised.Equal(decimal.NewFromInt(500)))
	assert.True(t, p.CompletionPercentage.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 2, p.InvestmentCount)
	assert.Equal(t, 1, p.InvestorCount)
	assert.Equal(t, int64(24*60*60), p.RemainingSeconds)
	assert.True(t, p.Pending.IsZero())
}

func TestSharePercentage(t *testing.T) {
	assert.True(t, SharePercentage(decimal.NewFromInt(400), decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(40)))
	assert.True(t, SharePercentage(decimal.RequireFromString("0.5"), decimal.NewFromInt(4)).Equal(decimal.RequireFromString("12.5")))
	assert.True(t, SharePercentage(decimal.NewFromInt(1), decimal.Zero).IsZero())
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(configOf("", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	p, err = PolicyFromConfig(configOf("reserve", "remaining"))
	require.NoError(t, err)
	assert.Equal(t, Policy{CommitMode: CommitReserve, AmountLimit: LimitRemaining}, p)

	_, err = PolicyFromConfig(configOf("queue", ""))
	assert.Error(t, err)
	_, err = PolicyFromConfig(configOf("", "half"))
	assert.Error(t, err)
}
