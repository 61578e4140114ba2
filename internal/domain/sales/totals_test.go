package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourism/backoffice/internal/domain/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	t.Run("simple sale without cashback", func(t *testing.T) {
		totals, err := ComputeTotals([]decimal.Decimal{d("200.00")}, nil, decimal.Zero, decimal.Zero, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, d("200").Equal(totals.GrossTotal))
		assert.True(t, totals.TotalDiscount.IsZero())
		assert.True(t, d("200").Equal(totals.NetTotal))
	})

	t.Run("cashback is capped by what the sale can absorb", func(t *testing.T) {
		totals, err := ComputeTotals([]decimal.Decimal{d("40")}, nil, decimal.Zero, decimal.Zero, d("50"))
		require.NoError(t, err)
		assert.True(t, d("40").Equal(totals.AppliedCashback))
		assert.True(t, totals.NetTotal.IsZero())
	})

	t.Run("explicit discounts reduce the ceiling", func(t *testing.T) {
		totals, err := ComputeTotals(
			[]decimal.Decimal{d("300"), d("100")},
			[]decimal.Decimal{d("50")},
			d("20"), d("10"), d("1000"),
		)
		require.NoError(t, err)
		assert.True(t, d("400").Equal(totals.TotalHostings))
		assert.True(t, d("50").Equal(totals.TotalTickets))
		assert.True(t, d("450").Equal(totals.GrossTotal))
		assert.True(t, d("30").Equal(totals.ExplicitDiscount))
		assert.True(t, d("420").Equal(totals.AppliedCashback))
		assert.True(t, d("450").Equal(totals.TotalDiscount))
		assert.True(t, totals.NetTotal.IsZero())
	})

	t.Run("rejects discounts above gross", func(t *testing.T) {
		_, err := ComputeTotals([]decimal.Decimal{d("10")}, nil, d("11"), decimal.Zero, decimal.Zero)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_DISCOUNT", domainErr.Code)
	})

	t.Run("rejects negative inputs", func(t *testing.T) {
		_, err := ComputeTotals([]decimal.Decimal{d("-1")}, nil, decimal.Zero, decimal.Zero, decimal.Zero)
		assert.Error(t, err)
		_, err = ComputeTotals(nil, nil, d("-1"), decimal.Zero, decimal.Zero)
		assert.Error(t, err)
		_, err = ComputeTotals(nil, nil, decimal.Zero, decimal.Zero, d("-1"))
		assert.Error(t, err)
	})

	t.Run("empty sale", func(t *testing.T) {
		totals, err := ComputeTotals(nil, nil, decimal.Zero, decimal.Zero, d("25"))
		require.NoError(t, err)
		assert.True(t, totals.GrossTotal.IsZero())
		assert.True(t, totals.AppliedCashback.IsZero())
	})
}
