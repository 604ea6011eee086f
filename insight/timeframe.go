package insight

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Named timeframes. Any Go duration such as "36h" is accepted as well.
const (
	Timeframe24Hours = "24h"
	Timeframe7Days   = "7d"
	Timeframe30Days  = "30d"
	Timeframe90Days  = "90d"
	Timeframe1Year   = "1y"
	TimeframeAll     = "all"
)

// Since returns the start of timeframe relative to now. TimeframeAll and the
// empty string yield the zero time, which matches every post.
func Since(timeframe string, now time.Time) (time.Time, error) {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	switch {
	case tf == "" || tf == TimeframeAll:
		return time.Time{}, nil
	case strings.HasSuffix(tf, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(tf, "d"))
		if err != nil || days <= 0 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
		}
		return now.AddDate(0, 0, -days), nil
	case strings.HasSuffix(tf, "y"):
		years, err := strconv.Atoi(strings.TrimSuffix(tf, "y"))
		if err != nil || years <= 0 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
		}
		return now.AddDate(-years, 0, 0), nil
	}

	d, err := time.ParseDuration(tf)
	if err != nil || d <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
	}
	return now.Add(-d), nil
}
