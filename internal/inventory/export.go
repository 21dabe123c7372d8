package inventory

import (
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteValuationCSV serialises a valuation to CSV. Monetary columns use
// grouped decimal formatting so the export reads well in spreadsheets.
func WriteValuationCSV(w io.Writer, valuation Valuation) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	printer := message.NewPrinter(language.English)

	if err := writer.Write([]string{"Product ID", "Product", "Quantity On Hand", "Avg Unit Cost", "Value"}); err != nil {
		return err
	}
	for _, line := range valuation.Lines {
		record := []string{
			strconv.FormatInt(line.ProductID, 10),
			line.ProductName,
			strconv.FormatInt(line.OnHand, 10),
			printer.Sprintf("%.2f", line.AvgUnitCost),
			printer.Sprintf("%.2f", line.Value),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "Total", "", "", printer.Sprintf("%.2f", valuation.TotalValue)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
