package pricelog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "ticks"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecentNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	marketID := uuid.New()
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := j.Append(Tick{
			MarketID: marketID,
			PriceYes: decimal.NewFromFloat(0.5).Add(decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(100))),
			PriceNo:  decimal.NewFromFloat(0.5),
			Volume:   decimal.NewFromInt(int64(i) * 10),
			Ts:       base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	ticks, err := j.Recent(marketID, 3)
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	require.True(t, ticks[0].Ts.After(ticks[1].Ts))
	require.True(t, ticks[1].Ts.After(ticks[2].Ts))
	require.True(t, ticks[0].Ts.Equal(base.Add(4*time.Second)))
	require.True(t, ticks[0].Volume.Equal(decimal.NewFromInt(40)))
}

func TestRecentNoLimitReturnsAll(t *testing.T) {
	j := openTestJournal(t)
	marketID := uuid.New()
	base := time.Now().UTC()

	for i := 0; i < 4; i++ {
		require.NoError(t, j.Append(Tick{
			MarketID: marketID,
			PriceYes: decimal.NewFromFloat(0.5),
			PriceNo:  decimal.NewFromFloat(0.5),
			Ts:       base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	ticks, err := j.Recent(marketID, 0)
	require.NoError(t, err)
	require.Len(t, ticks, 4)
}

func TestMarketsAreIsolated(t *testing.T) {
	j := openTestJournal(t)
	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC()

	require.NoError(t, j.Append(Tick{MarketID: a, PriceYes: decimal.NewFromFloat(0.6), PriceNo: decimal.NewFromFloat(0.4), Ts: now}))
	require.NoError(t, j.Append(Tick{MarketID: b, PriceYes: decimal.NewFromFloat(0.3), PriceNo: decimal.NewFromFloat(0.7), Ts: now}))

	ticks, err := j.Recent(a, 0)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Equal(t, a, ticks[0].MarketID)

	ticks, err = j.Recent(uuid.New(), 0)
	require.NoError(t, err)
	require.Empty(t, ticks)
}
