package availability

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
const monday = "2024-01-01"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 540, true},
		{"9:00", 540, true},
		{"10:00 AM", 600, true},
		{"2:30 pm", 870, true},
		{"12:00 PM", 720, true},
		{"23:59", 1439, true},
		{"25:00", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate(" 2024-03-05 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)

	_, err = NormalizeDate("05/03/2024")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "date", verr.Field)
}

func TestNormalizeWeekly(t *testing.T) {
	got, err := NormalizeWeekly(Weekly{
		"Monday":  {"10:00 AM", "09:00", "9:00"},
		"monday":  {"11:00"},
		"Tuesday": {},
	})
	require.NoError(t, err)
	assert.Equal(t, Weekly{"monday": {"09:00", "10:00", "11:00"}}, got)

	_, err = NormalizeWeekly(Weekly{"funday": {"09:00"}})
	assert.Error(t, err)

	_, err = NormalizeWeekly(Weekly{"friday": {"late"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "weekly.friday", verr.Field)
}

func TestNormalizeBlock(t *testing.T) {
	b, err := NormalizeBlock(Block{Date: monday, StartTime: "9:00", EndTime: "10:30 AM"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", b.StartTime)
	assert.Equal(t, "10:30", b.EndTime)

	b, err = NormalizeBlock(Block{Date: monday})
	require.NoError(t, err)
	assert.Empty(t, b.StartTime)

	_, err = NormalizeBlock(Block{Date: monday, StartTime: "09:00"})
	assert.Error(t, err)

	_, err = NormalizeBlock(Block{Date: monday, StartTime: "10:00", EndTime: "09:00"})
	assert.Error(t, err)
}

func weekdayAvailability() *Availability {
	a := Empty(uuid.New())
	a.Weekly = Weekly{"monday": {"09:00", "09:30", "10:00", "10:30"}}
	return a
}

func TestOffered(t *testing.T) {
	a := weekdayAvailability()

	got, err := a.Offered(monday, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, got)

	// Tuesday has no declared hours.
	got, err = a.Offered("2024-01-02", 30)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = a.Offered("not-a-date", 30)
	assert.Error(t, err)
}

func TestOfferedRespectsBlocks(t *testing.T) {
	a := weekdayAvailability()
	a.Blocks = []Block{{Date: monday, StartTime: "09:15", EndTime: "10:00"}}

	got, err := a.Offered(monday, 30)
	require.NoError(t, err)
	// 09:00-09:30 and 09:30-10:00 overlap the block; 10:00 starts at its end.
	assert.Equal(t, []string{"10:00", "10:30"}, got)

	a.Blocks = append(a.Blocks, Block{Date: monday})
	got, err = a.Offered(monday, 30)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Blocks on other dates do not apply.
	next := "2024-01-08"
	got, err = a.Offered(next, 30)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestOpenSlots(t *testing.T) {
	a := weekdayAvailability()

	got, err := a.OpenSlots(monday, 30, []string{"9:30", "10:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:30"}, got)

	got, err = a.OpenSlots(monday, 30, []string{"09:00", "09:30", "10:00", "10:30"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOpenSlotsNilAvailability(t *testing.T) {
	var a *Availability
	got, err := a.OpenSlots(monday, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestIsOffered(t *testing.T) {
	a := weekdayAvailability()

	ok, err := a.IsOffered(monday, "9:00", 30)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.IsOffered(monday, "11:00", 30)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.IsOffered(monday, "quarter past", 30)
	assert.Error(t, err)
}
