package main

import (
	"errors"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// dayRange resolves the --date / --start_date / --end_date flags. An explicit
// range needs both ends and excludes --date; with no flags the range is today.
func dayRange(date, startDate, endDate string, today entity.TradingDay) (start, end entity.TradingDay, err error) {
	switch {
	case startDate != "" || endDate != "":
		if date != "" {
			return start, end, errors.New("--date cannot be combined with --start_date/--end_date")
		}
		if startDate == "" || endDate == "" {
			return start, end, errors.New("--start_date and --end_date must be given together")
		}
		if start, err = entity.ParseTradingDay(startDate); err != nil {
			return
		}
		if end, err = entity.ParseTradingDay(endDate); err != nil {
			return
		}
		if start.After(end) {
			err = errors.New("--start_date is after --end_date")
		}
		return
	case date != "":
		start, err = entity.ParseTradingDay(date)
		return start, start, err
	default:
		return today, today, nil
	}
}
