package clix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// AddPaginationFlags registers --limit and --offset.
func AddPaginationFlags(flags *pflag.FlagSet, defaultLimit int) {
	flags.Int("limit", defaultLimit, "Maximum number of rows to show")
	flags.Int("offset", 0, "Number of rows to skip")
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseMinutes reads a positive minute amount such as "90" or "12.5".
func ParseMinutes(s string) (float64, error) {
	minutes, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes %q: %w", s, err)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("minutes must be positive, got %v", minutes)
	}
	return minutes, nil
}
