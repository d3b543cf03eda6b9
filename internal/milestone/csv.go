package milestone

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// scheduleRow is one line of a milestone schedule CSV export. Dates use
// the ISO calendar-date form.
type scheduleRow struct {
	POID         string  `csv:"po_id"`
	Title        string  `csv:"title"`
	ExpectedDate string  `csv:"expected_date"`
	PaymentPct   float64 `csv:"payment_pct"`
}

// ScheduleCSV is a parsed schedule file grouped by purchase order.
type ScheduleCSV map[string][]ScheduleEntry

// ReadScheduleCSV parses a milestone schedule CSV into per-PO entry lists.
// The whole file is validated before anything is returned; a bad row fails
// the import with its line number.
func ReadScheduleCSV(r io.Reader) (ScheduleCSV, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "milestone: read csv header")
	}

	out := make(ScheduleCSV)
	for line := 2; ; line++ {
		var row scheduleRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "milestone: csv line %d", line)
		}

		if row.POID == "" || row.Title == "" {
			return nil, eris.Wrapf(ErrMissingField, "milestone: csv line %d", line)
		}
		date, err := time.Parse("2006-01-02", row.ExpectedDate)
		if err != nil {
			return nil, eris.Wrapf(err, "milestone: csv line %d: expected_date", line)
		}
		if row.PaymentPct < 0 || row.PaymentPct > 100 {
			return nil, eris.Wrapf(ErrInvalidPaymentPct, "milestone: csv line %d", line)
		}

		out[row.POID] = append(out[row.POID], ScheduleEntry{
			Title:        row.Title,
			ExpectedDate: date.UTC(),
			PaymentPct:   row.PaymentPct,
		})
	}
	if len(out) == 0 {
		return nil, ErrEmptySchedule
	}
	return out, nil
}
