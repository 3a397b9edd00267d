package approval

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"
)

const auditSuffixSpace = 10000

var auditIDPattern = regexp.MustCompile(`^AUD-\d{8}-\d{4}$`)

// SuffixSource supplies the numeric tail of an audit id. day is the
// YYYYMMDD component the suffix will be paired with.
type SuffixSource interface {
	Next(day string) int
}

// RandomSuffix draws suffixes uniformly from 0000-9999. Two decisions on the
// same day may share an id; audit ids are advisory labels, not keys.
type RandomSuffix struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSuffix seeds the source. A zero seed picks one at random.
func NewRandomSuffix(seed uint64) *RandomSuffix {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomSuffix{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomSuffix) Next(string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(auditSuffixSpace)
}

// SequentialSuffix counts decisions per day, starting at 0001.
type SequentialSuffix struct {
	mu    sync.Mutex
	day   string
	count int
}

func NewSequentialSuffix() *SequentialSuffix {
	return &SequentialSuffix{}
}

func (s *SequentialSuffix) Next(day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if day != s.day {
		s.day = day
		s.count = 0
	}
	s.count++
	return s.count % auditSuffixSpace
}

func FormatAuditID(at time.Time, suffix int) string {
	return fmt.Sprintf("AUD-%s-%04d", auditDay(at), normalizeSuffix(suffix))
}

func ValidAuditID(value string) bool {
	return auditIDPattern.MatchString(value)
}

func auditDay(at time.Time) string {
	return at.UTC().Format("20060102")
}

func normalizeSuffix(suffix int) int {
	suffix %= auditSuffixSpace
	if suffix < 0 {
		suffix += auditSuffixSpace
	}
	return suffix
}
