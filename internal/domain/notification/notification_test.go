package notification

import (
	"testing"

	"autolot-auction-engine/internal/domain/listing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCarAlertMatches(t *testing.T) {
	l := &listing.Listing{
		ID:            uuid.New(),
		Make:          "Toyota",
		Model:         "Camry",
		Year:          2020,
		StartingPrice: 1000,
	}

	model := "Camry"
	otherModel := "Corolla"
	low := 500.0
	high := 5000.0
	year2021 := 2021

	tests := []struct {
		name  string
		alert CarAlert
		want  bool
	}{
		{"make only", CarAlert{Make: "Toyota", IsActive: true}, true},
		{"make mismatch", CarAlert{Make: "Honda", IsActive: true}, false},
		{"make and model", CarAlert{Make: "Toyota", Model: &model, IsActive: true}, true},
		{"model mismatch", CarAlert{Make: "Toyota", Model: &otherModel, IsActive: true}, false},
		{"within price bounds", CarAlert{Make: "Toyota", MinPrice: &low, MaxPrice: &high, IsActive: true}, true},
		{"starting price above cap", CarAlert{Make: "Toyota", MaxPrice: &low, IsActive: true}, false},
		{"starting price below floor", CarAlert{Make: "Toyota", MinPrice: &high, IsActive: true}, false},
		{"year below minimum", CarAlert{Make: "Toyota", MinYear: &year2021, IsActive: true}, false},
		{"year within maximum", CarAlert{Make: "Toyota", MaxYear: &year2021, IsActive: true}, true},
		{"inactive alert never matches", CarAlert{Make: "Toyota"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.alert.Matches(l))
		})
	}
}
