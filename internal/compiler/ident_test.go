package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Contact", "contact"},
		{"qualify_lead", "qualify_lead"},
		{"Sales Order", "sales_order"},
		{"Café-Menü", "cafe_menu"},
		{"  weird -- name  ", "weird_name"},
		{"UPPER", "upper"},
		{"a1b2", "a1b2"},
		{"__trim__", "trim"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, sqlName(tc.in), "sqlName(%q)", tc.in)
	}
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'lead'", quoteLiteral("lead"))
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
	assert.Equal(t, "''", quoteLiteral(""))
}
