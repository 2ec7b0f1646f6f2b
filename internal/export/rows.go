package export

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/weihan/menu-copilot-back/internal/response"
	"github.com/weihan/menu-copilot-back/internal/textutil"
)

// Fixed tax fields for the upload sheet. Every row carries the same
// taxable category and the statutory 5% rate.
const (
	TaxType = "應稅"
	TaxRate = "0.05"
)

// TagSlots is the number of note columns on the platform upload sheet.
const TagSlots = 12

// Row is one fixed-shape record destined for the tabular artifact.
// Transient: built here, consumed by the encoder, then discarded.
type Row struct {
	Name    string
	Price   string
	TaxType string
	TaxRate string
	Tags    [TagSlots]string
}

var ErrNoItems = errors.New("no menu items to export")

// Rows converts parsed menu items into export rows. Names lose their
// decorative runes, prices are copied verbatim, and only priced tags
// survive, left-packed into the available slots with order preserved.
// An empty item list fails the whole export.
func Rows(items []response.MenuItem) ([]Row, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := Row{
			Name:    textutil.StripDecorative(item.Name),
			Price:   item.Price,
			TaxType: TaxType,
			TaxRate: TaxRate,
		}
		slot := 0
		for _, tag := range item.Tags {
			if !textutil.HasPricedTag(tag) {
				continue
			}
			if slot >= TagSlots {
				break
			}
			row.Tags[slot] = tag
			slot++
		}
		rows = append(rows, row)
	}
	return rows, nil
}

const sheetName = "菜單"

// EncodeXLSX renders rows into the platform upload workbook.
func EncodeXLSX(rows []Row) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"品名", "價格", "稅別", "稅率"}
	for i := 1; i <= TagSlots; i++ {
		header = append(header, fmt.Sprintf("備註%d", i))
	}
	if err := file.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for index, row := range rows {
		values := []any{row.Name, row.Price, row.TaxType, row.TaxRate}
		for _, tag := range row.Tags {
			values = append(values, tag)
		}
		cell, err := excelize.CoordinatesToCellName(1, index+2)
		if err != nil {
			return nil, fmt.Errorf("row cell name: %w", err)
		}
		if err := file.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", index+1, err)
		}
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buffer.Bytes(), nil
}
