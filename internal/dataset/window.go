package dataset

import (
	"fmt"
	"time"
)

const isoZ = "2006-01-02T15:04:05Z"

// DayWindow devuelve los límites UTC ISO-Z del día local [inicio, fin).
// El "día" de un dataset se define en la zona horaria de la liga, no en UTC.
func DayWindow(day, tzName string) (commenceFrom, commenceTo string, err error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return "", "", fmt.Errorf("dataset.DayWindow: load tz %q: %w", tzName, err)
	}
	parsed, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return "", "", fmt.Errorf("dataset.DayWindow: invalid day %q: %w", day, err)
	}
	start := parsed
	end := start.AddDate(0, 0, 1)
	return start.UTC().Format(isoZ), end.UTC().Format(isoZ), nil
}

// ResolveDays expande un rango [from, to] inclusive en días YYYY-MM-DD, o los
// últimos n días terminando hoy (hora local de la liga) si from/to van vacíos.
func ResolveDays(n int, fromDay, toDay, tzName string, now time.Time) ([]string, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("dataset.ResolveDays: load tz %q: %w", tzName, err)
	}
	if (fromDay == "") != (toDay == "") {
		return nil, fmt.Errorf("dataset.ResolveDays: from and to must be provided together")
	}
	var start, end time.Time
	if fromDay != "" {
		start, err = time.ParseInLocation("2006-01-02", fromDay, loc)
		if err != nil {
			return nil, fmt.Errorf("dataset.ResolveDays: invalid from %q: %w", fromDay, err)
		}
		end, err = time.ParseInLocation("2006-01-02", toDay, loc)
		if err != nil {
			return nil, fmt.Errorf("dataset.ResolveDays: invalid to %q: %w", toDay, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("dataset.ResolveDays: to %q before from %q", toDay, fromDay)
		}
	} else {
		if n <= 0 {
			n = 1
		}
		local := now.In(loc)
		end = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		start = end.AddDate(0, 0, -(n - 1))
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days, nil
}
