package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reporting-scheduler/services/definition"
)

func TestBuildSubstitutesPlaceholders(t *testing.T) {
	d := &definition.Delivery{
		Title:           "Weekly sales",
		TextDescription: "Report ready at {{urlDefinition}} covering {{hits}} records",
		HTMLDescription: "<a href=\"{{urlDefinition}}\">report</a> ({{hits}} hits)",
	}

	msg := Build(d, "https://example.com/reports#/report_definition_details/42", 1200)

	assert.Equal(t, "Weekly sales", msg.Title)
	assert.Equal(t, "Report ready at https://example.com/reports#/report_definition_details/42 covering 1200 records", msg.Text)
	assert.Equal(t, "<a href=\"https://example.com/reports#/report_definition_details/42\">report</a> (1200 hits)", msg.HTML)
}

func TestBuildLeavesPlainTextAlone(t *testing.T) {
	d := &definition.Delivery{
		Title:           "Done",
		TextDescription: "no placeholders here",
	}

	msg := Build(d, "https://example.com", 5)
	assert.Equal(t, "no placeholders here", msg.Text)
	assert.Empty(t, msg.HTML)
}

func TestReportLink(t *testing.T) {
	d := &definition.Details{
		ID: "42",
		Report: definition.ReportDefinition{
			Source: definition.Source{Origin: "https://analytics.example.com/"},
		},
	}
	assert.Equal(t, "https://analytics.example.com/reports#/report_definition_details/42", ReportLink(d))

	d.Report.Source.Origin = ""
	assert.Empty(t, ReportLink(d))
}
