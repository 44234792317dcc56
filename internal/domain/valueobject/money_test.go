package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalWithFee(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{100, 110},
		{49.99, 54.99},
		{0.01, 0.01},
		{19.95, 21.95},
		{1234.56, 1358.02},
	}

	for _, tt := range tests {
		got, err := TotalWithFee(tt.price)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "price %v", tt.price)
	}
}

func TestTotalWithFee_RejectsNonPositive(t *testing.T) {
	_, err := TotalWithFee(0)
	assert.Error(t, err)

	_, err = TotalWithFee(-5)
	assert.Error(t, err)
}

func TestSplitPayout(t *testing.T) {
	p := SplitPayout(110)
	assert.Equal(t, 110.0, p.TotalAmount)
	assert.Equal(t, 100.0, p.FreelancerAmount)
	assert.Equal(t, 10.0, p.WebsiteFee)
}

func TestSplitPayout_PartsAlwaysSumToTotal(t *testing.T) {
	for _, price := range []float64{1, 9.99, 33.33, 100, 250.5, 999.99, 12345.67} {
		total, err := TotalWithFee(price)
		require.NoError(t, err)

		p := SplitPayout(total)
		assert.Equal(t, ToCents(total), ToCents(p.FreelancerAmount)+ToCents(p.WebsiteFee))
		assert.InDelta(t, total/1.10, p.FreelancerAmount, 0.005)
	}
}

func TestPayout_Matches(t *testing.T) {
	p := SplitPayout(110)
	assert.True(t, p.Matches(Payout{TotalAmount: 110, FreelancerAmount: 100, WebsiteFee: 10}))
	assert.False(t, p.Matches(Payout{TotalAmount: 110, FreelancerAmount: 105, WebsiteFee: 5}))
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(10.006, "")
	require.NoError(t, err)
	assert.Equal(t, "usd", m.Currency)
	assert.Equal(t, int64(1001), m.Cents())

	_, err = NewMoney(-1, "usd")
	assert.Error(t, err)
}
