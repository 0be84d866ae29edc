package useragent

import (
	"fmt"
	"sort"

	"github.com/brianvoe/gofakeit/v6"
)

var androidDevices = []string{
	"SM-G991B", "SM-G998B", "SM-S901B", "SM-S911B", "SM-A525F", "SM-A536B",
	"Pixel 6", "Pixel 7", "Pixel 7 Pro", "Pixel 8",
	"M2101K6G", "2201117TG", "22101316G", "CPH2399", "RMX3370", "V2145",
}

// Chrome major version → build number.
var chromeBuilds = map[int]int{
	116: 5845,
	118: 5993,
	120: 6099,
	122: 6261,
	124: 6367,
	126: 6478,
	128: 6613,
}

// Generator produces Android Chrome user agents.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator seeds a generator; seed 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Generate returns a random mobile Chrome user agent for Android.
func (g *Generator) Generate() string {
	android := g.faker.Number(10, 14)
	device := g.faker.RandomString(androidDevices)

	majors := make([]int, 0, len(chromeBuilds))
	for m := range chromeBuilds {
		majors = append(majors, m)
	}
	sort.Ints(majors)
	major := g.faker.RandomInt(majors)
	build := chromeBuilds[major]
	patch := g.faker.Number(40, 220)

	return fmt.Sprintf(
		"Mozilla/5.0 (Linux; Android %d; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Mobile Safari/537.36",
		android, device, major, build, patch,
	)
}
