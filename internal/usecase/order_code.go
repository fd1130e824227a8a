package usecase

import (
	"fmt"
	"time"
)

const orderCodeDayLayout = "20060102"

// ORD-YYYYMMDD-
func OrderCodePrefix(day time.Time) string {
	return "ORD-" + day.Format(orderCodeDayLayout) + "-"
}

// ORD-YYYYMMDD-NNNN（9999を超えたら桁が増える）
func FormatOrderCode(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%04d", OrderCodePrefix(day), seq)
}
