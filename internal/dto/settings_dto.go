package dto

import "github.com/shopspring/decimal"

type UpdateTaxSettingsRequest struct {
	Enabled bool            `json:"enabled"`
	Rate    decimal.Decimal `json:"rate" validate:"min=0,max=1"`
	Name    string          `json:"name" validate:"required,max=40"`
}

type TaxSettingsResponse struct {
	Enabled bool            `json:"enabled"`
	Rate    decimal.Decimal `json:"rate"`
	Name    string          `json:"name"`
}
