package valueobject

import (
	"math"

	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

// PlatformFeePercent - комиссия площадки, добавляемая к цене пакета.
const PlatformFeePercent = 10

type Money struct {
	Amount   float64
	Currency string
}

func NewMoney(amount float64, currency string) (Money, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, apperror.Validation("сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = "usd"
	}
	return Money{Amount: Round2(amount), Currency: currency}, nil
}

// Cents возвращает сумму в минимальных единицах валюты.
func (m Money) Cents() int64 {
	return ToCents(m.Amount)
}

func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TotalWithFee считает сумму к оплате: цена пакета плюс комиссия, с округлением до центов.
func TotalWithFee(price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, apperror.Validation("цена пакета должна быть положительной")
	}
	priceCents := ToCents(price)
	totalCents := divRound(priceCents*(100+PlatformFeePercent), 100)
	return FromCents(totalCents), nil
}

// Payout - разбиение оплаченной суммы между исполнителем и площадкой.
type Payout struct {
	TotalAmount      float64 `json:"totalAmount"`
	FreelancerAmount float64 `json:"freelancerAmount"`
	WebsiteFee       float64 `json:"websiteFee"`
}

// SplitPayout выделяет из totalAmount долю исполнителя (total / 1.10) и комиссию.
// Сумма частей всегда равна total с точностью до цента.
func SplitPayout(total float64) Payout {
	totalCents := ToCents(total)
	freelancerCents := divRound(totalCents*100, 100+PlatformFeePercent)
	return Payout{
		TotalAmount:      FromCents(totalCents),
		FreelancerAmount: FromCents(freelancerCents),
		WebsiteFee:       FromCents(totalCents - freelancerCents),
	}
}

// Matches сравнивает суммы с точностью до цента.
func (p Payout) Matches(other Payout) bool {
	return ToCents(p.TotalAmount) == ToCents(other.TotalAmount) &&
		ToCents(p.FreelancerAmount) == ToCents(other.FreelancerAmount) &&
		ToCents(p.WebsiteFee) == ToCents(other.WebsiteFee)
}

// divRound делит неотрицательные целые с округлением половины вверх.
func divRound(a, b int64) int64 {
	return (a + b/2) / b
}
