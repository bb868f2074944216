package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/roster/internal/api"
)

var testClasses = []api.Class{
	{ID: 11, ClassName: "10A1", SchoolYear: 2025, Semester: "HK1", StudentCount: 34},
	{ID: 12, ClassName: "11B2", SchoolYear: 2025, Semester: "HK2", StudentCount: 28},
	{ID: 30, ClassName: "12C3", SchoolYear: 2024, Semester: "HK1", StudentCount: 31},
}

func TestWhereFilter(t *testing.T) {
	tests := []struct {
		expr string
		want []int64
	}{
		{"", []int64{11, 12, 30}},
		{"schoolYear == 2025", []int64{11, 12}},
		{`semester == "HK1" && studentCount > 30`, []int64{11, 30}},
		{`className startsWith "1" && not (className contains "B")`, []int64{11, 30}},
		{"teacherName == nil", []int64{11, 12, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := compileWhere(tt.expr)
			require.NoError(t, err)

			got, err := apply(f, testClasses)
			require.NoError(t, err)

			ids := make([]int64, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestWhereFilterDoesNotModifyInput(t *testing.T) {
	items := append([]api.Class(nil), testClasses...)
	f, err := compileWhere("id == 30")
	require.NoError(t, err)

	got, err := apply(f, items)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, testClasses, items)
}

func TestWhereFilterRejectsBadExpressions(t *testing.T) {
	_, err := compileWhere("schoolYear ==")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = compileWhere(`"not a bool"`)
	require.Error(t, err)
}
