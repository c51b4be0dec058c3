package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSunSign(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{date(2000, time.January, 1), "Capricorn"},
		{date(2000, time.January, 19), "Capricorn"},
		{date(2000, time.January, 20), "Aquarius"},
		{date(2000, time.March, 21), "Aries"},
		{date(1990, time.August, 15), "Leo"},
		{date(1985, time.November, 21), "Scorpio"},
		{date(1985, time.December, 21), "Sagittarius"},
		{date(1985, time.December, 31), "Capricorn"},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format("Jan 02"), func(t *testing.T) {
			assert.Equal(t, tt.want, SunSign(tt.date).Name)
		})
	}
}

func TestLifePathNumber(t *testing.T) {
	// 1+9+9+0 + 8 + 1+5 = 33, a master number
	assert.Equal(t, 33, LifePathNumber(date(1990, time.August, 15)))
	// 2+0+0+0 + 1 + 1 = 4
	assert.Equal(t, 4, LifePathNumber(date(2000, time.January, 1)))
	// 1+9+8+7 + 1+2 + 2+5 = 35 -> 8
	assert.Equal(t, 8, LifePathNumber(date(1987, time.December, 25)))
}

func TestCompatibilityIsSymmetric(t *testing.T) {
	leo := SunSign(date(1990, time.August, 15))
	gemini := SunSign(date(1990, time.June, 1))
	taurus := SunSign(date(1990, time.May, 1))

	assert.Equal(t, Compatibility(leo, gemini), Compatibility(gemini, leo))
	assert.Equal(t, 90, Compatibility(leo, gemini))
	assert.Equal(t, 45, Compatibility(taurus, leo))
}

func TestDailyHoroscopeIsStablePerDay(t *testing.T) {
	leo := SunSign(date(1990, time.August, 15))
	day := date(2024, time.May, 1)

	assert.Equal(t, DailyHoroscope(leo, day), DailyHoroscope(leo, day.Add(3*time.Hour)))
	assert.Contains(t, DailyHoroscope(leo, day), "Lucky number")
}
