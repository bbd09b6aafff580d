package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromURL(t *testing.T) {
	cases := []struct {
		url, name, ext string
	}{
		{"https://cdn.example.com/art/logo.PNG", "logo.PNG", "png"},
		{"https://cdn.example.com/art/mockup.final.webp?x=1", "mockup.final.webp", "webp"},
		{"https://cdn.example.com/art/no-extension", "no-extension", "jpg"},
		{"plain.gif", "plain.gif", "gif"},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			name, ext := FilenameFromURL(tc.url)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.ext, ext)
		})
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AC", Initials("acme corp international"))
	assert.Equal(t, "J", Initials("jane"))
	assert.Equal(t, "", Initials("  "))
}

func TestDecimalChange(t *testing.T) {
	assert.Equal(t, 0.0, decimalChange(decimal.NewFromInt(10), decimal.Zero))
	assert.Equal(t, 25.0, decimalChange(decimal.NewFromInt(125), decimal.NewFromInt(100)))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("shipping_date", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDate("shipping_date", "2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, 30, d.Day())

	_, err = parseDate("shipping_date", "30/06/2025")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCheckOwner(t *testing.T) {
	assert.True(t, errors.Is(checkOwner(0, "PURCHASE_ORDERS"), ErrValidation))
	assert.True(t, errors.Is(checkOwner(1, "INVOICES"), ErrInvalidItemType))
	assert.NoError(t, checkOwner(1, "SHIPPING"))
}
