package utils

import (
	"database/sql"
	"fmt"
	"time"
)

// GetStatusDistribution retrieves today's distribution of dispatch record
// statuses (SUCCESS/FAILED).
func GetStatusDistribution(db *sql.DB) (map[string]int, error) {
	statusCounts := make(map[string]int)
	query := `
		SELECT status, COUNT(*) FROM dispatch_records
		WHERE created_at::date = CURRENT_DATE
		GROUP BY status
	`
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get status distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status distribution row: %w", err)
		}
		statusCounts[status] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status distribution rows: %w", err)
	}

	// Ensure both keys exist even if count is 0 for consistent JSON
	if _, ok := statusCounts["SUCCESS"]; !ok {
		statusCounts["SUCCESS"] = 0
	}
	if _, ok := statusCounts["FAILED"]; !ok {
		statusCounts["FAILED"] = 0
	}

	return statusCounts, nil
}

// GetDailyDispatchCounts retrieves the number of dispatched rows per day for
// the last 'days' days.
func GetDailyDispatchCounts(db *sql.DB, days int) (map[string]int, error) {
	dailyCounts := make(map[string]int)

	today := time.Now().UTC()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		dailyCounts[date] = 0 // Initialize with 0
	}

	query := `
		SELECT created_at::date AS record_date, COUNT(*)
		FROM dispatch_records
		WHERE created_at::date >= (CURRENT_DATE - ($1 - 1) * INTERVAL '1 day')::date
		GROUP BY record_date
		ORDER BY record_date ASC
	`
	rows, err := db.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily dispatch counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordDate time.Time
		var count int
		if err := rows.Scan(&recordDate, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily dispatch row: %w", err)
		}
		dailyCounts[recordDate.Format("2006-01-02")] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over daily dispatch rows: %w", err)
	}

	return dailyCounts, nil
}
