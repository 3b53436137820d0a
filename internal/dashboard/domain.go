package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Day describes one day of the requested month.
type Day struct {
	Num       int    `json:"day_num"`
	NameShort string `json:"day_name_short"`
	IsSunday  bool   `json:"is_sunday"`
}

// AuditorTotal is one entry of auditor_totals.
type AuditorTotal struct {
	Name  string
	Total int
}

// Totals keeps auditor_totals in the order the backend sent it.
type Totals []AuditorTotal

// UnmarshalJSON decodes a JSON object preserving key order.
func (t *Totals) UnmarshalJSON(data []byte) error {
	out := Totals{}
	err := decodeObject(data, func(key string, dec *json.Decoder) error {
		var n int
		if err := dec.Decode(&n); err != nil {
			return err
		}
		out = append(out, AuditorTotal{Name: key, Total: n})
		return nil
	})
	if err != nil {
		return fmt.Errorf("dashboard: auditor_totals: %w", err)
	}
	*t = out
	return nil
}

// Get returns the total of name, or 0.
func (t Totals) Get(name string) int {
	for _, at := range t {
		if at.Name == name {
			return at.Total
		}
	}
	return 0
}

// AuditorDays holds one auditor's counts keyed by day number.
type AuditorDays struct {
	Name   string
	Counts map[int]int
}

// Detail keeps dashboard_data in the order the backend sent it.
type Detail []AuditorDays

// UnmarshalJSON decodes a JSON object of objects preserving the outer key order.
func (d *Detail) UnmarshalJSON(data []byte) error {
	out := Detail{}
	err := decodeObject(data, func(key string, dec *json.Decoder) error {
		counts := map[int]int{}
		if err := dec.Decode(&counts); err != nil {
			return err
		}
		out = append(out, AuditorDays{Name: key, Counts: counts})
		return nil
	})
	if err != nil {
		return fmt.Errorf("dashboard: dashboard_data: %w", err)
	}
	*d = out
	return nil
}

// decodeObject walks the members of a JSON object in order. null decodes to nothing.
func decodeObject(data []byte, member func(key string, dec *json.Decoder) error) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if err := member(key, dec); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}

// Summary is the aggregate answer for one period.
type Summary struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	MonthName    string `json:"month_name"`
	Year         int    `json:"year_processed"`
	TotalRecords int    `json:"total_records_month"`
	NumAuditors  int    `json:"num_auditors_processed"`
	Detail       Detail `json:"dashboard_data"`
	Days         []Day  `json:"days_in_month_data"`
	Totals       Totals `json:"auditor_totals"`
}
