package lead

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Record is one synthetic business contact. Records are never mutated after
// generation.
type Record struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email,omitempty"`
	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`
	Address string  `json:"address"`
	Website string  `json:"website,omitempty"`
}

func (r Record) HasEmail() bool { return r.Email != "" }
func (r Record) HasPhone() bool { return r.Phone != "" }

// Source produces the record at a given index of a job.
type Source interface {
	Generate(jobID string, index int, location, keyword string) (Record, error)
}

const (
	DefaultEmailProbability = 0.3

	minRating  = 3.5
	maxRating  = 5.0
	minReviews = 5
	maxReviews = 2000
)

var namePool = []string{
	"Summit Home Services",
	"Blue Ridge Plumbing",
	"Oak & Iron Builders",
	"Brightside Dental",
	"Metro Auto Repair",
	"Golden Crust Bakery",
	"Harbor View Realty",
	"Evergreen Landscaping",
	"Pinnacle Fitness",
	"Riverstone Law Group",
	"Sunrise Family Clinic",
	"Northside Electric",
	"Copper Kettle Cafe",
	"Prime Roofing Co",
	"Lakeside Pet Care",
	"Urban Nest Interiors",
	"Cornerstone Accounting",
	"Silver Line HVAC",
	"Maple Street Florist",
	"Atlas Moving & Storage",
}

var streets = []string{
	"Main St", "Oak Ave", "Pine St", "Maple Dr", "Cedar Ln",
	"Elm St", "Park Blvd", "Lake Rd", "Hill St", "Market St",
}

// Generator builds records from a shared random source. It is safe for
// concurrent use.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	emailProb float64
}

// NewGenerator returns a generator with a fixed seed, so two generators with the
// same seed produce the same records.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		emailProb: DefaultEmailProbability,
	}
}

func NewRandomGenerator() *Generator {
	return NewGenerator(time.Now().UnixNano())
}

// WithEmailProbability sets the chance that a record carries an email (and a
// website). Values are clamped to [0, 1].
func (g *Generator) WithEmailProbability(p float64) *Generator {
	g.emailProb = math.Max(0, math.Min(1, p))
	return g
}

// Name returns the display name for the record at index. Past the end of the
// pool names repeat with a numeric suffix.
func Name(index int) string {
	if index < 0 {
		index = -index
	}
	base := namePool[index%len(namePool)]
	if index < len(namePool) {
		return base
	}
	return fmt.Sprintf("%s %d", base, index/len(namePool)+1)
}

// Generate builds the record at index. The keyword is accepted for parity with
// real sources but does not change the output.
func (g *Generator) Generate(jobID string, index int, location, keyword string) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := Name(index)
	rec := Record{
		ID:      fmt.Sprintf("%s-%d", jobID, index),
		Name:    name,
		Phone:   g.phone(),
		Rating:  math.Round((minRating+g.rng.Float64()*(maxRating-minRating))*10) / 10,
		Reviews: minReviews + g.rng.Intn(maxReviews-minReviews+1),
		Address: fmt.Sprintf("%d %s, %s", 100+g.rng.Intn(9900), streets[g.rng.Intn(len(streets))], strings.TrimSpace(location)),
	}

	if g.rng.Float64() < g.emailProb {
		domain := slug(name) + ".com"
		rec.Email = "contact@" + domain
		rec.Website = "https://www." + domain
	}

	return rec, nil
}

func (g *Generator) phone() string {
	return fmt.Sprintf("(%d) %03d-%04d", 200+g.rng.Intn(800), g.rng.Intn(1000), g.rng.Intn(10000))
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "business"
	}
	return b.String()
}
