package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 {
	return &v
}

func TestReportIncidentRequestRequiresCoordinates(t *testing.T) {
	errs := ValidateReportIncidentRequest(&ReportIncidentRequest{Type: "fire"})
	fields := errs.Fields()
	assert.Contains(t, fields, "Latitude")
	assert.Contains(t, fields, "Longitude")

	// An explicit 0,0 is a real position, not a missing one.
	errs = ValidateReportIncidentRequest(&ReportIncidentRequest{
		Type:      "fire",
		Latitude:  f64(0),
		Longitude: f64(0),
	})
	assert.Empty(t, errs)
}

func TestReportIncidentRequestRejectsOutOfRangeCoordinates(t *testing.T) {
	errs := ValidateReportIncidentRequest(&ReportIncidentRequest{
		Type:      "flood",
		Latitude:  f64(200),
		Longitude: f64(36.8),
	})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs.Fields(), "Latitude")
}

func TestNearbyQueryRequiresCoordinates(t *testing.T) {
	errs := ValidateStruct(&NearbyQuery{})
	fields := errs.Fields()
	assert.Contains(t, fields, "Latitude")
	assert.Contains(t, fields, "Longitude")

	errs = ValidateStruct(&NearbyQuery{Latitude: f64(0), Longitude: f64(0)})
	assert.Empty(t, errs)

	errs = ValidateStruct(&NearbyQuery{Latitude: f64(-1.29), Longitude: f64(360)})
	require.NotEmpty(t, errs)
	assert.Contains(t, errs.Fields(), "Longitude")
}
