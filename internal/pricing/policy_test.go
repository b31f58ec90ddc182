package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelscout/fuelscout/internal/station"
)

func testPolicy() Policy {
	return Policy{
		DieselStandard:            decimal.NewFromFloat(149.9),
		DieselSupermarket:         decimal.NewFromFloat(151.9),
		PetrolDiscountStandard:    decimal.NewFromFloat(3.0),
		PetrolDiscountSupermarket: decimal.NewFromFloat(1.0),
	}
}

func stationWithBrandAndPetrol(brand string, petrol float64) *station.Station {
	return &station.Station{
		ID:          "t-1",
		Brand:       brand,
		Name:        "Test",
		PetrolPrice: &petrol,
	}
}

func TestDerivePrices_StandardBrand(t *testing.T) {
	st := stationWithBrandAndPetrol("SHELL", 1.459)

	got, err := DerivePrices(st, testPolicy())
	require.NoError(t, err)

	assert.False(t, got.IsSupermarket)
	assert.True(t, got.Diesel.Equal(decimal.NewFromFloat(149.9)), "diesel %s", got.Diesel)
	assert.True(t, got.PetrolDiscount.Equal(decimal.NewFromFloat(3.0)))

	// 145.9 pence pump minus 3.0 discount, exactly
	require.NotNil(t, got.Petrol)
	assert.True(t, got.Petrol.Equal(decimal.NewFromFloat(142.9)), "petrol %s", got.Petrol)
}

func TestDerivePrices_SupermarketBrand(t *testing.T) {
	st := stationWithBrandAndPetrol("Asda", 1.359)

	got, err := DerivePrices(st, testPolicy())
	require.NoError(t, err)

	assert.True(t, got.IsSupermarket)
	assert.True(t, got.Diesel.Equal(decimal.NewFromFloat(151.9)))
	require.NotNil(t, got.Petrol)
	assert.True(t, got.Petrol.Equal(decimal.NewFromFloat(134.9)), "petrol %s", got.Petrol)
}

func TestDerivePrices_ExactPenceArithmetic(t *testing.T) {
	// 1.459 in binary floating point is not 145.9/100; the decimal
	// conversion must still produce exactly 144.9 after a 1p discount.
	policy := testPolicy()
	policy.PetrolDiscountStandard = decimal.NewFromFloat(1.0)
	st := stationWithBrandAndPetrol("SHELL", 1.459)

	got, err := DerivePrices(st, policy)
	require.NoError(t, err)
	require.NotNil(t, got.Petrol)
	assert.Equal(t, "144.9", got.Petrol.String())
}

func TestDerivePrices_NoPumpPetrol(t *testing.T) {
	st := &station.Station{ID: "t-2", Brand: "SHELL"}

	got, err := DerivePrices(st, testPolicy())
	require.NoError(t, err)
	assert.Nil(t, got.Petrol)
	assert.True(t, got.Diesel.Equal(decimal.NewFromFloat(149.9)))
}

func TestDerivePrices_NilStation(t *testing.T) {
	_, err := DerivePrices(nil, testPolicy())
	assert.Error(t, err)
}

func TestDerivePrices_InvalidPolicy(t *testing.T) {
	policy := testPolicy()
	policy.DieselStandard = decimal.NewFromFloat(-1)

	_, err := DerivePrices(stationWithBrandAndPetrol("SHELL", 1.459), policy)
	assert.ErrorIs(t, err, ErrNegativePrice)
}

func TestPolicy_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, testPolicy().Validate())
	})

	t.Run("negative price", func(t *testing.T) {
		p := testPolicy()
		p.PetrolDiscountSupermarket = decimal.NewFromFloat(-0.5)
		assert.ErrorIs(t, p.Validate(), ErrNegativePrice)
	})

	t.Run("window ends before it starts", func(t *testing.T) {
		p := testPolicy()
		p.ValidFrom = time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
		p.ValidTo = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		assert.ErrorIs(t, p.Validate(), ErrInvalidWindow)
	})

	t.Run("open-ended window is fine", func(t *testing.T) {
		p := testPolicy()
		p.ValidFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, p.Validate())
	})
}

func TestPolicy_ActiveAt(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	p := testPolicy()
	p.ValidFrom = from
	p.ValidTo = to

	assert.True(t, p.ActiveAt(from))
	assert.True(t, p.ActiveAt(from.Add(72*time.Hour)))
	assert.True(t, p.ActiveAt(to))
	assert.False(t, p.ActiveAt(from.Add(-time.Second)))
	assert.False(t, p.ActiveAt(to.Add(time.Second)))

	open := testPolicy()
	assert.True(t, open.ActiveAt(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPolicy_IsSupermarket(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		brand string
		want  bool
	}{
		{"ASDA", true},
		{"asda", true},
		{"Tesco", true},
		{"Sainsbury's", true}, // apostrophe stripped by normalization
		{"MORRISONS", true},
		{"Shell", false},
		{"Esso Tesco Alliance", false}, // membership is exact, not substring
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsSupermarket(tt.brand))
		})
	}
}

func TestPolicy_IsSupermarketOverrideSet(t *testing.T) {
	p := testPolicy()
	p.SupermarketBrands = []string{"COSTCO"}

	assert.True(t, p.IsSupermarket("Costco"))
	assert.False(t, p.IsSupermarket("ASDA"))
}

func TestPoundsToPence_Exact(t *testing.T) {
	tests := []struct {
		pounds float64
		want   string
	}{
		{1.459, "145.9"},
		{1.3, "130"},
		{0, "0"},
		{1.999, "199.9"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PoundsToPence(tt.pounds).String())
	}
}

func TestPenceToPounds_RoundTrips(t *testing.T) {
	pence := PoundsToPence(1.459)
	assert.Equal(t, "1.459", PenceToPounds(pence).String())
}
