package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func draftAmounts(drafts []ObligationDraft) map[string]money.Amount {
	out := make(map[string]money.Amount, len(drafts))
	for _, d := range drafts {
		out[d.UserID] = d.Amount
	}
	return out
}

func TestComputeSplitEqual(t *testing.T) {
	tests := []struct {
		name          string
		participants  []string
		total         money.Amount
		payer         string
		wantOwed      map[string]money.Amount
		wantFairShare money.Amount
	}{
		{
			name:          "even division",
			participants:  []string{"alice", "bob"},
			total:         2000,
			payer:         "alice",
			wantOwed:      map[string]money.Amount{"alice": 0, "bob": 1000},
			wantFairShare: 1000,
		},
		{
			name:         "10 dollars across three, remainder to earliest joiners",
			participants: []string{"alice", "bob", "carol"},
			total:        1000,
			payer:        "alice",
			// 1000/3 = 333 rem 1; the first participant absorbs the extra cent.
			wantOwed:      map[string]money.Amount{"alice": 0, "bob": 333, "carol": 333},
			wantFairShare: 334,
		},
		{
			name:          "remainder lands on a non-payer when payer joined later",
			participants:  []string{"alice", "bob", "carol"},
			total:         1000,
			payer:         "carol",
			wantOwed:      map[string]money.Amount{"alice": 334, "bob": 333, "carol": 0},
			wantFairShare: 333,
		},
		{
			name:          "100 dollars across three",
			participants:  []string{"alice", "bob", "carol"},
			total:         10000,
			payer:         "alice",
			wantOwed:      map[string]money.Amount{"alice": 0, "bob": 3333, "carol": 3333},
			wantFairShare: 3334,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ComputeSplit(tt.participants, tt.total, tt.payer, EqualSplit{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwed, draftAmounts(result.Drafts))
			assert.Equal(t, tt.wantFairShare, result.PayerFairShare)
			assert.False(t, result.NoDebt)

			var owed money.Amount
			for _, d := range result.Drafts {
				if d.UserID == tt.payer {
					assert.True(t, d.Settled, "payer draft must be born settled")
					assert.Equal(t, money.Amount(0), d.Amount)
				} else {
					assert.False(t, d.Settled)
					owed += d.Amount
				}
			}
			assert.Equal(t, tt.total, owed+result.PayerFairShare, "shares must sum to the total exactly")
		})
	}
}

func TestComputeSplitEqualTinyTotal(t *testing.T) {
	// Fewer cents than participants: whoever gets no cent owes nothing and
	// must not linger as unretirable debt.
	result, err := ComputeSplit([]string{"alice", "bob", "carol"}, 2, "alice", EqualSplit{})
	require.NoError(t, err)
	for _, d := range result.Drafts {
		switch d.UserID {
		case "bob":
			assert.Equal(t, money.Amount(1), d.Amount)
			assert.False(t, d.Settled)
		case "carol":
			assert.Equal(t, money.Amount(0), d.Amount)
			assert.True(t, d.Settled)
		}
	}
	assert.False(t, result.NoDebt)
}

func TestComputeSplitSingleParticipant(t *testing.T) {
	result, err := ComputeSplit([]string{"alice"}, 500, "alice", EqualSplit{})
	require.NoError(t, err)
	assert.True(t, result.NoDebt)
	require.Len(t, result.Drafts, 1)
	assert.Equal(t, money.Amount(0), result.Drafts[0].Amount)
	assert.True(t, result.Drafts[0].Settled)
	assert.Equal(t, int64(BpsWhole), result.Drafts[0].ShareBps)
	assert.Equal(t, money.Amount(500), result.PayerFairShare)
}

func TestComputeSplitExact(t *testing.T) {
	t.Run("matching shares", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 400, "bob": 600},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]money.Amount{"alice": 0, "bob": 600}, draftAmounts(result.Drafts))
		assert.Equal(t, money.Amount(400), result.PayerFairShare)
	})

	t.Run("one cent short reconciled on the last participant", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 400, "bob": 599},
		})
		require.NoError(t, err)
		assert.Equal(t, money.Amount(600), draftAmounts(result.Drafts)["bob"])
	})

	t.Run("two cents off rejected", func(t *testing.T) {
		_, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 400, "bob": 598},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("zero share is born settled", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob", "carol"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 0, "bob": 1000, "carol": 0},
		})
		require.NoError(t, err)
		for _, d := range result.Drafts {
			switch d.UserID {
			case "bob":
				assert.Equal(t, money.Amount(1000), d.Amount)
				assert.False(t, d.Settled)
			case "carol":
				// Nothing to collect, so nothing left to retire.
				assert.Equal(t, money.Amount(0), d.Amount)
				assert.True(t, d.Settled)
			}
		}
		assert.False(t, result.NoDebt)
	})

	t.Run("whole total on the payer means no debt", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 1000, "bob": 0},
		})
		require.NoError(t, err)
		assert.True(t, result.NoDebt)
		for _, d := range result.Drafts {
			assert.True(t, d.Settled)
		}
	})

	t.Run("overshoot drift skips shares it would drive negative", func(t *testing.T) {
		// Shares sum to 10.01 against a 10.00 total, within tolerance, but
		// the last participant has nothing to give back.
		result, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 1001, "bob": 0},
		})
		require.NoError(t, err)
		for _, d := range result.Drafts {
			assert.GreaterOrEqual(t, d.Amount, money.Amount(0))
		}
		assert.Equal(t, money.Amount(1000), result.PayerFairShare)
		assert.True(t, result.NoDebt)
	})

	t.Run("missing participant rejected", func(t *testing.T) {
		_, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 1000},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("extra user rejected", func(t *testing.T) {
		_, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", ExactSplit{
			Shares: map[string]money.Amount{"alice": 400, "bob": 300, "mallory": 300},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestComputeSplitPercentage(t *testing.T) {
	t.Run("clean percentages", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", PercentSplit{
			SharesBps: map[string]int64{"alice": 2500, "bob": 7500},
		})
		require.NoError(t, err)
		assert.Equal(t, money.Amount(750), draftAmounts(result.Drafts)["bob"])
		assert.Equal(t, money.Amount(250), result.PayerFairShare)
	})

	t.Run("three-way 33.33 percent, residual to payer", func(t *testing.T) {
		result, err := ComputeSplit([]string{"alice", "bob", "carol"}, 10000, "alice", PercentSplit{
			SharesBps: map[string]int64{"alice": 3333, "bob": 3333, "carol": 3333},
		})
		require.NoError(t, err)
		owed := draftAmounts(result.Drafts)
		assert.Equal(t, money.Amount(3333), owed["bob"])
		assert.Equal(t, money.Amount(3333), owed["carol"])
		// Each 33.33% share rounds to 33.33; the 1-cent residual lands on
		// the payer's fair share, keeping the total exact.
		assert.Equal(t, money.Amount(3334), result.PayerFairShare)
	})

	t.Run("percentages off beyond tolerance rejected", func(t *testing.T) {
		_, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", PercentSplit{
			SharesBps: map[string]int64{"alice": 5000, "bob": 4000},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("negative percentage rejected", func(t *testing.T) {
		_, err := ComputeSplit([]string{"alice", "bob"}, 1000, "alice", PercentSplit{
			SharesBps: map[string]int64{"alice": 10100, "bob": -100},
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("residual falls to largest non-payer share when payer has zero percent", func(t *testing.T) {
		// alice pays but consumes nothing; rounding drift cannot come out
		// of her zero share.
		result, err := ComputeSplit([]string{"alice", "bob", "carol"}, 101, "alice", PercentSplit{
			SharesBps: map[string]int64{"alice": 0, "bob": 5000, "carol": 5000},
		})
		require.NoError(t, err)
		owed := draftAmounts(result.Drafts)
		assert.Equal(t, money.Amount(101), owed["bob"]+owed["carol"])
		assert.Equal(t, money.Amount(0), result.PayerFairShare)
	})
}

func TestComputeSplitValidation(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		total        money.Amount
		payer        string
	}{
		{name: "zero total", participants: []string{"alice"}, total: 0, payer: "alice"},
		{name: "negative total", participants: []string{"alice"}, total: -100, payer: "alice"},
		{name: "no participants", participants: nil, total: 100, payer: "alice"},
		{name: "payer not participating", participants: []string{"alice", "bob"}, total: 100, payer: "carol"},
		{name: "duplicate participant", participants: []string{"alice", "alice"}, total: 100, payer: "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSplit(tt.participants, tt.total, tt.payer, EqualSplit{})
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}
