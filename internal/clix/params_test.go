package clix

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddPaginationFlags(flags, 50)

	p, err := ParsePagination(flags)
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 50, Offset: 0}, p)

	require.NoError(t, flags.Parse([]string{"--limit", "0", "--offset", "-3"}))
	p, err = ParsePagination(flags)
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 20, Offset: 0}, p)

	require.NoError(t, flags.Parse([]string{"--limit", "5", "--offset", "10"}))
	p, err = ParsePagination(flags)
	require.NoError(t, err)
	assert.Equal(t, PaginationParams{Limit: 5, Offset: 10}, p)
}

func TestParseMinutes(t *testing.T) {
	m, err := ParseMinutes(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, m)

	_, err = ParseMinutes("0")
	assert.Error(t, err)
	_, err = ParseMinutes("-4")
	assert.Error(t, err)
	_, err = ParseMinutes("ten")
	assert.Error(t, err)
}
