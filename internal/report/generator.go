package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"kitbuild/internal/order"
	"kitbuild/internal/progress"
)

const (
	SummarySheet  = "Summary"
	TimelineSheet = "Timeline"
)

// Generator renders an order and its ledger as an XLSX workbook.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(o order.Order, entries []progress.Entry) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, o)

	if _, err := file.NewSheet(TimelineSheet); err != nil {
		return nil, err
	}
	g.writeTimeline(file, o, entries)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, o order.Order) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(SummarySheet, cell, value)
	}

	set("A1", "Order")
	set("B1", o.ID)
	set("A2", "Client")
	set("B2", formatPtr(o.ClientID))
	set("A3", "Status")
	set("B3", string(o.Status))
	set("A4", "Estimated price")
	set("B4", money(o.EstimatedPriceCents))
	set("A5", "Estimated days")
	set("B5", o.EstimatedDays)
	if o.FinalPriceCents != nil {
		set("A6", "Final price")
		set("B6", money(*o.FinalPriceCents))
	}
	if o.FinalDays != nil {
		set("A7", "Final days")
		set("B7", *o.FinalDays)
	}
	set("A8", "Created")
	set("B8", formatDateTime(o.CreatedAt))

	tableRow := 10
	headers := []string{"Kit", "Grade", "Service type", "Complexity", "Add-ons", "Price", "Days"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}
	for i, it := range o.Items {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), it.KitName)
		set(fmt.Sprintf("B%d", row), formatPtr(it.KitGrade))
		set(fmt.Sprintf("C%d", row), it.ServiceTypeID)
		set(fmt.Sprintf("D%d", row), it.ComplexityLevelID)
		set(fmt.Sprintf("E%d", row), len(it.AddOnIDs))
		set(fmt.Sprintf("F%d", row), money(it.LinePriceCents))
		set(fmt.Sprintf("G%d", row), it.LineDays)
	}

	_ = file.SetColWidth(SummarySheet, "A", "A", 32)
	_ = file.SetColWidth(SummarySheet, "B", "E", 20)
	_ = file.SetColWidth(SummarySheet, "F", "G", 12)
}

func (g *Generator) writeTimeline(file *excelize.File, o order.Order, entries []progress.Entry) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(TimelineSheet, cell, value)
	}

	itemNames := make(map[string]string, len(o.Items))
	for _, it := range o.Items {
		itemNames[it.ID] = it.KitName
	}

	headers := []string{"#", "When", "Kind", "From", "To", "Item", "Message", "Actor"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}
	for i, e := range entries {
		row := 2 + i
		item := ""
		if e.OrderItemID != nil {
			item = itemNames[*e.OrderItemID]
		}
		set(fmt.Sprintf("A%d", row), e.Seq)
		set(fmt.Sprintf("B%d", row), formatDateTime(e.CreatedAt))
		set(fmt.Sprintf("C%d", row), string(e.Kind))
		set(fmt.Sprintf("D%d", row), formatPtr(e.FromStatus))
		set(fmt.Sprintf("E%d", row), formatPtr(e.ToStatus))
		set(fmt.Sprintf("F%d", row), item)
		set(fmt.Sprintf("G%d", row), e.Message)
		set(fmt.Sprintf("H%d", row), e.Actor)
	}

	_ = file.SetColWidth(TimelineSheet, "A", "A", 6)
	_ = file.SetColWidth(TimelineSheet, "B", "B", 20)
	_ = file.SetColWidth(TimelineSheet, "C", "F", 16)
	_ = file.SetColWidth(TimelineSheet, "G", "G", 60)
	_ = file.SetColWidth(TimelineSheet, "H", "H", 24)
}

// money converts cents to a currency amount for a numeric cell.
func money(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func formatPtr(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
