package notification

import (
	"strconv"
	"strings"

	"reporting-scheduler/services/definition"
)

// Template placeholders callers may embed in delivery descriptions.
const (
	placeholderReportLink = "{{urlDefinition}}"
	placeholderHits       = "{{hits}}"
)

// Message is a fully rendered notification ready for a channel.
type Message struct {
	Title string
	Text  string
	HTML  string
}

// Build renders the delivery block of a definition into a message,
// substituting the report link and hit count placeholders.
func Build(d *definition.Delivery, reportLink string, hits int64) Message {
	return Message{
		Title: d.Title,
		Text:  substitute(d.TextDescription, reportLink, hits),
		HTML:  substitute(d.HTMLDescription, reportLink, hits),
	}
}

func substitute(body, reportLink string, hits int64) string {
	if body == "" {
		return ""
	}
	body = strings.ReplaceAll(body, placeholderReportLink, reportLink)
	return strings.ReplaceAll(body, placeholderHits, strconv.FormatInt(hits, 10))
}

// ReportLink points back at the definition details page on the origin the
// report was created from.
func ReportLink(d *definition.Details) string {
	origin := strings.TrimRight(d.Report.Source.Origin, "/")
	if origin == "" {
		return ""
	}
	return origin + "/reports#/report_definition_details/" + d.ID
}
