package content

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// ZodiacSign is a western tropical sun sign.
type ZodiacSign struct {
	Name    string
	Symbol  string
	Element string
	// Start is the first (month, day) of the sign.
	StartMonth time.Month
	StartDay   int
}

// Signs in calendar order, starting with Capricorn so that a date before the
// first start in the year falls back to the last entry.
var zodiac = []ZodiacSign{
	{"Capricorn", "♑", "Earth", time.January, 1},
	{"Aquarius", "♒", "Air", time.January, 20},
	{"Pisces", "♓", "Water", time.February, 19},
	{"Aries", "♈", "Fire", time.March, 21},
	{"Taurus", "♉", "Earth", time.April, 20},
	{"Gemini", "♊", "Air", time.May, 21},
	{"Cancer", "♋", "Water", time.June, 21},
	{"Leo", "♌", "Fire", time.July, 23},
	{"Virgo", "♍", "Earth", time.August, 23},
	{"Libra", "♎", "Air", time.September, 23},
	{"Scorpio", "♏", "Water", time.October, 23},
	{"Sagittarius", "♐", "Fire", time.November, 22},
	{"Capricorn", "♑", "Earth", time.December, 22},
}

// SunSign returns the sun sign for a birth date.
func SunSign(date time.Time) ZodiacSign {
	sign := zodiac[0]
	for _, z := range zodiac {
		if date.Month() > z.StartMonth || (date.Month() == z.StartMonth && date.Day() >= z.StartDay) {
			sign = z
		}
	}
	return sign
}

// LifePathNumber reduces the digits of a birth date to a single digit,
// keeping the master numbers 11, 22 and 33.
func LifePathNumber(date time.Time) int {
	sum := digitSum(date.Year()) + digitSum(int(date.Month())) + digitSum(date.Day())
	for sum > 9 && sum != 11 && sum != 22 && sum != 33 {
		sum = digitSum(sum)
	}
	return sum
}

func digitSum(n int) int {
	s := 0
	for n > 0 {
		s += n % 10
		n /= 10
	}
	return s
}

var lifePathMeanings = map[int]string{
	1:  "The Leader: independent, driven and pioneering.",
	2:  "The Peacemaker: diplomatic, sensitive and cooperative.",
	3:  "The Communicator: creative, expressive and social.",
	4:  "The Builder: practical, disciplined and loyal.",
	5:  "The Adventurer: curious, restless and freedom-loving.",
	6:  "The Nurturer: caring, responsible and protective.",
	7:  "The Seeker: analytical, spiritual and introspective.",
	8:  "The Achiever: ambitious, confident and resourceful.",
	9:  "The Humanitarian: compassionate, generous and wise.",
	11: "Master 11, The Intuitive: inspired and visionary.",
	22: "Master 22, The Master Builder: turns big dreams into reality.",
	33: "Master 33, The Teacher: devoted to uplifting others.",
}

// LifePathMeaning describes a life path number.
func LifePathMeaning(n int) string {
	if m, ok := lifePathMeanings[n]; ok {
		return m
	}
	return "A path of its own."
}

// elementHarmony scores element pairs on a 0-100 scale.
var elementHarmony = map[string]int{
	"Fire/Fire": 80, "Fire/Air": 90, "Fire/Earth": 45, "Fire/Water": 40,
	"Earth/Earth": 80, "Earth/Water": 90, "Earth/Air": 45,
	"Air/Air": 80, "Air/Water": 50,
	"Water/Water": 85,
}

// Compatibility returns a 0-100 score for two signs based on their elements.
func Compatibility(a, b ZodiacSign) int {
	if s, ok := elementHarmony[a.Element+"/"+b.Element]; ok {
		return s
	}
	if s, ok := elementHarmony[b.Element+"/"+a.Element]; ok {
		return s
	}
	return 50
}

var horoscopeThemes = []string{
	"A conversation you have been postponing will go better than expected.",
	"Focus on finishing what you started; new beginnings can wait a day.",
	"An unexpected message brings good news about money or work.",
	"Your patience is tested today. Breathe before you reply.",
	"Creative energy is high. Put it into something you can share.",
	"Someone close needs your support more than your advice.",
	"A small risk pays off. Trust your first instinct.",
	"Rest is productive today. Recharge for a busy week ahead.",
}

var luckyColors = []string{"red", "gold", "green", "blue", "white", "violet", "orange", "silver"}

// DailyHoroscope returns a stable reading for a sign on a given day.
func DailyHoroscope(sign ZodiacSign, day time.Time) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s", sign.Name, day.Format("2006-01-02"))
	seed := h.Sum32()

	theme := horoscopeThemes[seed%uint32(len(horoscopeThemes))]
	color := luckyColors[(seed/7)%uint32(len(luckyColors))]
	number := seed%9 + 1

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s horoscope for %s*\n\n", sign.Symbol, sign.Name, day.Format("Mon, 02 Jan 2006"))
	b.WriteString(theme)
	fmt.Fprintf(&b, "\n\nLucky color: %s\nLucky number: %d", color, number)
	return b.String()
}
