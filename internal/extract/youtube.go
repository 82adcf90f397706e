package extract

import (
	"strconv"
	"strings"

	"analytics-intake/internal/domain"
)

// Export revisions name the title column differently; the first present one is used.
var aggregateColumns = []string{"Video", "Content Title", "Content", ""}

// YouTube extracts metrics from the aggregate row of a YouTube analytics
// export. Without an aggregate row every metric is 0.
func YouTube(rows []map[string]string) domain.Metrics {
	for _, row := range rows {
		if !isAggregateRow(row) {
			continue
		}
		comments, ok := row["Comments added"]
		if !ok {
			comments = row["Comments"]
		}
		return domain.Metrics{
			Views:    cellInt(row["Views"]),
			Likes:    cellInt(row["Likes"]),
			Comments: cellInt(comments),
			Shares:   cellInt(row["Shares"]),
		}
	}
	return domain.Metrics{}
}

func isAggregateRow(row map[string]string) bool {
	for _, col := range aggregateColumns {
		v, ok := row[col]
		if !ok {
			continue
		}
		switch strings.TrimSpace(v) {
		case "Total", "All videos":
			return true
		}
		return false
	}
	return false
}

func cellInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
