package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	t.Parallel()

	got := RenderTable([]string{"Name", "Age", "City"}, [][]string{
		{"John", "25", "New York"},
		{"Jane", "30", "London"},
	})

	want := "| Name | Age | City |\n" +
		"| --- | --- | --- |\n" +
		"| John | 25 | New York |\n" +
		"| Jane | 30 | London |"
	assert.Equal(t, want, got)
}

func TestRenderTable_When_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "|  |\n|  |", RenderTable(nil, nil))
	assert.Equal(t, "|  |\n|  |", RenderTable([]string{}, [][]string{}))
}

func TestRenderTable_When_SingleColumn(t *testing.T) {
	t.Parallel()

	got := RenderTable([]string{"Status"}, [][]string{{"Active"}, {"Inactive"}})

	assert.Equal(t, "| Status |\n| --- |\n| Active |\n| Inactive |", got)
}

func TestRenderTable_When_LineCount(t *testing.T) {
	t.Parallel()

	for rows := 0; rows < 6; rows++ {
		data := make([][]string, rows)
		for i := range data {
			data[i] = []string{"a", "b"}
		}
		got := RenderTable([]string{"x", "y"}, data)
		assert.Len(t, strings.Split(got, "\n"), rows+2)
	}
}

func TestRenderTable_When_CellContainsPipe(t *testing.T) {
	t.Parallel()

	got := RenderTable([]string{"A"}, [][]string{{"x|y"}})

	assert.Equal(t, "| A |\n| --- |\n| x|y |", got)
}

func TestRenderTable_When_RowsWiderThanHeaders(t *testing.T) {
	t.Parallel()

	got := RenderTable([]string{"A"}, [][]string{{"1", "2"}})

	assert.Equal(t, "| A |\n| --- |\n| 1 | 2 |", got)
}

func TestRenderRows(t *testing.T) {
	t.Parallel()

	got := RenderRows([]string{"N", "Double"}, []int{1, 2}, func(n int) []string {
		return []string{strings.Repeat("*", n), strings.Repeat("*", 2*n)}
	})

	assert.Equal(t, "| N | Double |\n| --- | --- |\n| * | ** |\n| ** | **** |", got)
}
