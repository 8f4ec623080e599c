// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierLabel(t *testing.T) {
	power := LabelContext{ServiceName: "Electricity", ProviderName: "ZETDC"}
	tests := []struct {
		name  string
		field string
		ctx   LabelContext
		want  string
	}{
		{"known field", "AccountNumber", LabelContext{}, "Account Number"},
		{"smart card", "SmartCardNumber", LabelContext{ServiceName: "Television"}, "Smart Card Number"},
		{"phone field for electricity", "Mobile Number", power, "Meter Number"},
		{"msisdn for zetdc product", "MSISDN", LabelContext{ProductName: "ZETDC Prepaid"}, "Meter Number"},
		{"phone field elsewhere", "PhoneNumber", LabelContext{ServiceName: "Internet"}, "Phone Number"},
		{"unknown pascal case", "PolicyHolderID", LabelContext{}, "Policy Holder ID"},
		{"snake case", "student_number", LabelContext{}, "Student Number"},
		{"empty electricity", "", LabelContext{ServiceName: "Electricity"}, "Meter Number"},
		{"empty water", "", LabelContext{ServiceName: "Water Bills"}, "Account Number"},
		{"empty television", "", LabelContext{ServiceName: "Television"}, "Smart Card Number"},
		{"empty tv", "", LabelContext{ServiceName: "Pay TV"}, "Smart Card Number"},
		{"empty default", "", LabelContext{}, "Account Number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentifierLabel(tt.field, tt.ctx))
		})
	}
}
