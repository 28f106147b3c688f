package render

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"consigna/internal/domain/labels"
)

// LabelSheet is the name of the label worksheet.
const LabelSheet = "Etiquetas"

const (
	// LabelsPerRow is how many labels sit side by side.
	LabelsPerRow = 3
	// labelRows is the height of one label block: image, code, three name
	// lines, price code and a spacer.
	labelRows = 7
)

// LabelRenderer lays labels out in a grid, each with an EAN-13 image.
type LabelRenderer struct{}

var _ labels.Renderer = LabelRenderer{}

// NewLabelRenderer creates a label renderer.
func NewLabelRenderer() LabelRenderer { return LabelRenderer{} }

// LabelCell returns the top-left cell of the i-th label.
func LabelCell(i int) string {
	col := (i%LabelsPerRow)*2 + 1
	row := (i/LabelsPerRow)*labelRows + 1
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// RenderLabels implements labels.Renderer.
func (LabelRenderer) RenderLabels(ctx context.Context, name string, items []labels.Label) (*labels.Rendered, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", LabelSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	images := make(map[string][]byte)
	for i, l := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, ok := images[l.Barcode]
		if !ok {
			var err error
			if img, err = BarcodePNG(l.Barcode, BarcodeWidth, BarcodeHeight); err != nil {
				return nil, err
			}
			images[l.Barcode] = img
		}

		if err := writeLabel(f, LabelCell(i), l, img); err != nil {
			return nil, fmt.Errorf("label %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize labels: %w", err)
	}

	return &labels.Rendered{
		Filename:    name + ".xlsx",
		ContentType: XLSXContentType,
		Bytes:       buf.Bytes(),
	}, nil
}

func writeLabel(f *excelize.File, topLeft string, l labels.Label, img []byte) error {
	col, row, err := excelize.CellNameToCoordinates(topLeft)
	if err != nil {
		return err
	}

	if err := f.SetRowHeight(LabelSheet, row, 56); err != nil {
		return err
	}
	if err := f.AddPictureFromBytes(LabelSheet, topLeft, &excelize.Picture{
		Extension: ".png",
		File:      img,
		Format:    &excelize.GraphicOptions{ScaleX: 0.8, ScaleY: 0.8, AltText: l.Barcode},
	}); err != nil {
		return fmt.Errorf("add barcode image: %w", err)
	}

	values := []string{l.Barcode, l.Lines[0], l.Lines[1], l.Lines[2], l.PriceCode}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(col, row+1+i)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(LabelSheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
