package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Period is a measurement period: a year and an optional quarter (1-4).
// Quarter 0 means the value covers the whole year.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter,omitempty"`
}

// Minimum and maximum accepted measurement years.
const (
	MinPeriodYear = 1990
	MaxPeriodYear = 2100
)

// ParsePeriod parses "2023" or "2023-Q2".
func ParsePeriod(s string) (Period, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Period{}, eris.New("model: empty period")
	}
	yearPart, quarterPart, hasQuarter := strings.Cut(s, "-")
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: parse period year %q", s)
	}
	p := Period{Year: year}
	if hasQuarter {
		q, err := strconv.Atoi(strings.TrimPrefix(quarterPart, "Q"))
		if err != nil {
			return Period{}, eris.Wrapf(err, "model: parse period quarter %q", s)
		}
		p.Quarter = q
	}
	return p, p.Validate()
}

// Validate checks the year and quarter ranges.
func (p Period) Validate() error {
	if p.Year < MinPeriodYear || p.Year > MaxPeriodYear {
		return eris.Errorf("model: period year %d outside [%d, %d]", p.Year, MinPeriodYear, MaxPeriodYear)
	}
	if p.Quarter < 0 || p.Quarter > 4 {
		return eris.Errorf("model: period quarter %d outside [0, 4]", p.Quarter)
	}
	return nil
}

// Before reports whether p is strictly earlier than o. An annual period
// sorts before the quarters of the same year.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

func (p Period) String() string {
	if p.Quarter == 0 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
}
