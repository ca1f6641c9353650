package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-31 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2024-03-31T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("31/03/2024")
	assert.Error(t, err)
}

func TestDateStatus(t *testing.T) {
	min := date(t, "2024-01-01")
	max := date(t, "2024-03-31")

	tests := []struct {
		name       string
		value      *time.Time
		grace      int
		considered bool
		want       string
	}{
		{"missing", nil, 0, false, DateMissing},
		{"inside window", date(t, "2024-02-15"), 0, false, DatePassed},
		{"on deadline", date(t, "2024-03-31"), 0, false, DatePassed},
		{"before window", date(t, "2023-12-31"), 0, false, DateFailed},
		{"late without grace", date(t, "2024-04-01"), 0, false, DateFailed},
		{"late grace disabled", date(t, "2024-04-01"), 30, false, DateFailed},
		{"late within grace", date(t, "2024-04-15"), 30, true, DateConsidered},
		{"last grace day", date(t, "2024-04-30"), 30, true, DateConsidered},
		{"past grace", date(t, "2024-05-01"), 30, true, DateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DateStatus(tt.value, min, max, tt.grace, tt.considered))
		})
	}
}

func TestDateStatus_Unbounded(t *testing.T) {
	assert.Equal(t, DatePassed, DateStatus(date(t, "1999-01-01"), nil, nil, 0, false))
}

func TestGraceDaysRemaining(t *testing.T) {
	deadline := *date(t, "2024-03-31")

	assert.Nil(t, GraceDaysRemaining(deadline, 10, *date(t, "2024-03-31")))
	assert.Nil(t, GraceDaysRemaining(deadline, 0, *date(t, "2024-04-02")))
	assert.Nil(t, GraceDaysRemaining(deadline, 10, *date(t, "2024-04-20")))

	rem := GraceDaysRemaining(deadline, 10, *date(t, "2024-04-02"))
	require.NotNil(t, rem)
	assert.Equal(t, 8, *rem)
}

func TestIsPastDeadline(t *testing.T) {
	deadline := *date(t, "2024-03-31")

	assert.False(t, IsPastDeadline(deadline, 0, *date(t, "2024-03-31")))
	assert.True(t, IsPastDeadline(deadline, 0, *date(t, "2024-04-01")))
	assert.False(t, IsPastDeadline(deadline, 5, *date(t, "2024-04-05")))
	assert.True(t, IsPastDeadline(deadline, 5, *date(t, "2024-04-06")))
}

func TestAreaDisplayName(t *testing.T) {
	assert.Equal(t, "Disaster Preparedness", AreaDisplayName("disaster_preparedness"))
	assert.Equal(t, "Youth Development", AreaDisplayName("youth_development"))
	assert.Equal(t, "Governance Area", AreaDisplayName(""))
	assert.True(t, IsCoreArea("safety_peace_order"))
	assert.False(t, IsCoreArea("environmental_management"))
	assert.True(t, IsKnownArea("social_protection"))
	assert.False(t, IsKnownArea("youth_development"))
}
