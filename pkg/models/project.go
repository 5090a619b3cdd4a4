package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectProperties holds the project-wide settings read from the property block.
type ProjectProperties struct {
	GUID                uuid.UUID       `json:"guid" msgpack:"guid"`
	StartDate           time.Time       `json:"start_date,omitzero" msgpack:"start_date,omitempty"`
	FinishDate          time.Time       `json:"finish_date,omitzero" msgpack:"finish_date,omitempty"`
	StatusDate          time.Time       `json:"status_date,omitzero" msgpack:"status_date,omitempty"`
	CurrencySymbol      string          `json:"currency_symbol,omitempty" msgpack:"currency_symbol,omitempty"`
	CurrencyCode        string          `json:"currency_code,omitempty" msgpack:"currency_code,omitempty"`
	CurrencyDigits      int             `json:"currency_digits" msgpack:"currency_digits"`
	DefaultStandardRate Rate            `json:"default_standard_rate" msgpack:"default_standard_rate"`
	DefaultOvertimeRate Rate            `json:"default_overtime_rate" msgpack:"default_overtime_rate"`
	SplitInProgress     bool            `json:"split_in_progress" msgpack:"split_in_progress"`
	Defaults            ProjectDefaults `json:"defaults" msgpack:"defaults"`
}
