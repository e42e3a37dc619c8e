package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	rec := New(map[string]string{
		ProjectName: "  Apollo ",
		Analyst:     "A1",
		"owner":     "ignored",
	})

	assert.Equal(t, "Apollo", rec.Get(ProjectName))
	assert.Equal(t, "", rec.Get(Department))
	assert.Equal(t, map[string]string{
		ProjectName: "Apollo",
		Department:  "",
		Analyst:     "A1",
		ReportDate:  "",
		Version:     "",
	}, rec.Map())

	m := rec.Map()
	m[ProjectName] = "changed"
	assert.Equal(t, "Apollo", rec.Get(ProjectName))
}

func TestIsKey(t *testing.T) {
	assert.True(t, IsKey("report_date"))
	assert.True(t, IsKey("Report_Date"))
	assert.False(t, IsKey("report date"))
	assert.Len(t, Keys, len(Labels))
}
