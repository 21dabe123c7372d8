package inventory

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteValuationCSV(t *testing.T) {
	valuation := Valuation{
		TenantID: 1,
		Lines: []ValuationLine{
			{ProductID: 100, ProductName: "Oak Plank 2m", OnHand: 10, AvgUnitCost: 21.8, Value: 218},
			{ProductID: 101, ProductName: "Packing Tape Roll", OnHand: 1200, AvgUnitCost: 1.4, Value: 1680},
		},
		TotalValue: 1898,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteValuationCSV(&buf, valuation))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header, two lines, total

	assert.Equal(t, []string{"Product ID", "Product", "Quantity On Hand", "Avg Unit Cost", "Value"}, rows[0])
	assert.Equal(t, "100", rows[1][0])
	assert.Equal(t, "Oak Plank 2m", rows[1][1])
	assert.Equal(t, "218.00", rows[1][4])
	// Large values come out with digit grouping.
	assert.Equal(t, "1,680.00", rows[2][4])
	assert.Equal(t, "Total", rows[3][1])
	assert.Equal(t, "1,898.00", rows[3][4])
}

func TestWriteValuationCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteValuationCSV(&buf, Valuation{TenantID: 1}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header and total only
	assert.Equal(t, "0.00", rows[1][4])
}
