package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
)

func TestIsValidPassport(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "valid", value: "AA1234567", valid: true},
		{name: "lowercase letters", value: "aa1234567", valid: false},
		{name: "short number", value: "AB123456", valid: false},
		{name: "long number", value: "AB12345678", valid: false},
		{name: "cyrillic letters", value: "АА1234567", valid: false},
		{name: "empty", value: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPassport(tt.value); got != tt.valid {
				t.Fatalf("IsValidPassport(%q) = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "valid", value: "+998901234567", valid: true},
		{name: "missing plus", value: "998901234567", valid: false},
		{name: "too short", value: "+99890123456", valid: false},
		{name: "foreign code", value: "+79011234567", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPhone(tt.value); got != tt.valid {
				t.Fatalf("IsValidPhone(%q) = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(loginRequest{Phone: "+998901234567", Password: "secret1"}))

	err := Struct(loginRequest{Phone: "12345", Password: "secret1"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "phone", appErr.Field)
	assert.Contains(t, appErr.Message, "+998")

	err = Struct(loginRequest{Phone: "+998901234567"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "password", appErr.Field)
}

func TestPlaces(t *testing.T) {
	tests := []struct {
		value   string
		places  int32
		wantErr bool
	}{
		{value: "1000", places: 2},
		{value: "1000.01", places: 2},
		{value: "1000.010", places: 2},
		{value: "1000.015", places: 2, wantErr: true},
		{value: "1.5", places: 3},
		{value: "1.0005", places: 3, wantErr: true},
		{value: "-0.125", places: 3},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := Places("price", decimal.RequireFromString(tt.value), tt.places)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "price", ae.Field)
			assert.Contains(t, ae.Message, "decimal places")
		})
	}
}
