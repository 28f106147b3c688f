// Package render serializes receipts and label sheets to XLSX workbooks.
package render

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"consigna/internal/core/types"
	"consigna/internal/domain/receipt"
)

// XLSXContentType is the MIME type of the produced workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReceiptSheet is the name of the receipt worksheet.
const ReceiptSheet = "Recibo"

const dateLayout = "02/01/2006"

// ReceiptRenderer writes a composed receipt to a single worksheet; each
// document page starts after a page break.
type ReceiptRenderer struct{}

var _ receipt.Renderer = ReceiptRenderer{}

// NewReceiptRenderer creates a receipt renderer.
func NewReceiptRenderer() ReceiptRenderer { return ReceiptRenderer{} }

type receiptStyles struct {
	bold, title, struck, header int
}

// Render implements receipt.Renderer.
func (ReceiptRenderer) Render(ctx context.Context, doc *receipt.Document) (*receipt.Rendered, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("receipt has no pages")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ReceiptSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	styles, err := newReceiptStyles(f)
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ReceiptSheet, "A", "A", 16); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ReceiptSheet, "B", "B", 42); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(ReceiptSheet, "C", "E", 12); err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: ReceiptSheet, row: 1}
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			if err := w.pageBreak(); err != nil {
				return nil, err
			}
		}
		writePage(w, page, len(doc.Pages), styles)
	}
	writeTotals(w, doc, styles)
	if w.err != nil {
		return nil, fmt.Errorf("write receipt: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize receipt: %w", err)
	}

	return &receipt.Rendered{
		Filename:    doc.Name + ".xlsx",
		ContentType: XLSXContentType,
		Bytes:       buf.Bytes(),
	}, nil
}

func newReceiptStyles(f *excelize.File) (receiptStyles, error) {
	var (
		s   receiptStyles
		err error
	)
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("bold style: %w", err)
	}
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return s, fmt.Errorf("title style: %w", err)
	}
	if s.struck, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Strike: true, Color: "808080"}}); err != nil {
		return s, fmt.Errorf("struck style: %w", err)
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	return s, nil
}

func writePage(w *sheetWriter, page receipt.Page, pageCount int, st receiptStyles) {
	h := page.Header
	for _, line := range h.StoreLines {
		w.rowStyled(st.bold, line)
	}
	if h.TaxID != "" {
		w.rowStyled(0, "CNPJ: "+h.TaxID)
	}
	w.rowStyled(0, "Remessa: "+h.ShipmentRef, "", "Data: "+h.Date.Format(dateLayout))
	w.rowStyled(0, "Cliente: "+h.PartyName)
	w.rowStyled(st.title, h.StatusLabel)
	w.rowStyled(0, fmt.Sprintf("Página %d de %d", page.Number, pageCount))
	w.blank()

	cols := make([]any, len(page.Columns))
	for i, c := range page.Columns {
		cols[i] = c
	}
	w.rowStyled(st.header, cols...)

	for _, r := range page.Rows {
		style := 0
		if r.Struck {
			style = st.struck
		}
		w.rowStyled(style,
			r.Barcode,
			r.Name,
			types.FormatBRL(r.UnitPrice),
			r.Quantity,
			types.FormatBRL(r.Subtotal),
		)
	}
}

func writeTotals(w *sheetWriter, doc *receipt.Document, st receiptStyles) {
	w.blank()
	w.rowStyled(0, "", "Itens", "", doc.ItemCount)
	w.rowStyled(0, "", "Subtotal", "", "", types.FormatBRL(doc.Subtotal))
	w.rowStyled(0, "", fmt.Sprintf("Desconto (%s%%)", doc.DiscountRate.String()), "", "", "-"+types.FormatBRL(doc.Discount))
	w.rowStyled(0, "", fmt.Sprintf("Impostos (%s%%)", doc.TaxRate.String()), "", "", types.FormatBRL(doc.Tax))
	w.rowStyled(st.title, "", "Total", "", "", types.FormatBRL(doc.Total))
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (w *sheetWriter) cell(col int) string {
	name, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

// rowStyled writes values from column A and styles the written span.
func (w *sheetWriter) rowStyled(style int, values ...any) {
	if w.err != nil {
		return
	}
	for i, v := range values {
		if err := w.f.SetCellValue(w.sheet, w.cell(i+1), v); err != nil {
			w.err = err
			return
		}
	}
	if style != 0 && len(values) > 0 {
		if err := w.f.SetCellStyle(w.sheet, w.cell(1), w.cell(len(values)), style); err != nil {
			w.err = err
			return
		}
	}
	w.row++
}

func (w *sheetWriter) blank() {
	if w.err == nil {
		w.row++
	}
}

func (w *sheetWriter) pageBreak() error {
	if w.err != nil {
		return w.err
	}
	if err := w.f.InsertPageBreak(w.sheet, w.cell(1)); err != nil {
		return fmt.Errorf("page break: %w", err)
	}
	return nil
}
