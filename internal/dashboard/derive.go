package dashboard

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pym-escuchas/escuchas/internal/dashboard/svg"
)

// Cards are the headline figures of a period.
type Cards struct {
	Total    int
	Auditors int
	Average  string
}

// Average formats total/auditors with one decimal, or "0" when there are no auditors.
func Average(total, auditors int) string {
	if auditors <= 0 {
		return "0"
	}
	return decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(auditors))).
		StringFixed(1)
}

// CardsOf derives the cards of s.
func CardsOf(s *Summary) Cards {
	return Cards{
		Total:    s.TotalRecords,
		Auditors: s.NumAuditors,
		Average:  Average(s.TotalRecords, s.NumAuditors),
	}
}

// AuditorBars returns one bar per auditor in backend order.
func AuditorBars(s *Summary) []svg.Point {
	points := make([]svg.Point, 0, len(s.Totals))
	for _, at := range s.Totals {
		points = append(points, svg.Point{Label: at.Name, Value: float64(at.Total)})
	}
	return points
}

// DailyLine returns one point per day of the month, summed across auditors.
func DailyLine(s *Summary) []svg.Point {
	points := make([]svg.Point, 0, len(s.Days))
	for _, day := range s.Days {
		sum := 0
		for _, a := range s.Detail {
			sum += a.Counts[day.Num]
		}
		points = append(points, svg.Point{Label: fmt.Sprintf("%02d", day.Num), Value: float64(sum)})
	}
	return points
}

// Cell is one day of a cross-tab row.
type Cell struct {
	Count  int
	Sunday bool
}

// Display renders the count, or "-" for an idle day.
func (c Cell) Display() string {
	if c.Count > 0 {
		return strconv.Itoa(c.Count)
	}
	return "-"
}

// Row is one auditor of the day by auditor cross-tab.
type Row struct {
	Auditor string
	Cells   []Cell
	Total   int
}

// CrossTab builds the day by auditor table. It is nil when there is nothing to show.
func CrossTab(s *Summary) []Row {
	if len(s.Detail) == 0 || len(s.Days) == 0 || s.Totals == nil {
		return nil
	}
	rows := make([]Row, 0, len(s.Detail))
	for _, a := range s.Detail {
		row := Row{Auditor: a.Name, Cells: make([]Cell, 0, len(s.Days)), Total: s.Totals.Get(a.Name)}
		for _, day := range s.Days {
			row.Cells = append(row.Cells, Cell{Count: a.Counts[day.Num], Sunday: day.IsSunday})
		}
		rows = append(rows, row)
	}
	return rows
}
