// Package fabricate produces the synthetic values written by the loader.
package fabricate

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
)

// Fabricator is a source of plausible looking values.  Implementations need not be safe for concurrent use.
type Fabricator interface {
	DomainName() string
	PersonName() string
	Word() string
	// Sentence returns a sentence of exactly words words.
	Sentence(words int) string
	// Text returns non-empty prose of at most maxChars characters.
	Text(maxChars int) string
	// Timestamp returns a time uniformly distributed in [from, to].
	Timestamp(from, to time.Time) time.Time
}

// FakeFabricator is a Fabricator backed by gofakeit.  Two instances created with the same non-zero seed
// produce the same sequence of values.
type FakeFabricator struct {
	faker *gofakeit.Faker
}

// NewFakeFabricator creates a FakeFabricator.  A zero seed is random.
func NewFakeFabricator(seed int64) *FakeFabricator {
	return &FakeFabricator{faker: gofakeit.New(seed)}
}

func (f *FakeFabricator) DomainName() string {
	return f.faker.DomainName()
}

func (f *FakeFabricator) PersonName() string {
	return f.faker.Name()
}

func (f *FakeFabricator) Word() string {
	return f.faker.Word()
}

func (f *FakeFabricator) Sentence(words int) string {
	if words < 1 {
		words = 1
	}
	return f.faker.Sentence(words)
}

func (f *FakeFabricator) Text(maxChars int) string {
	if maxChars < 1 {
		return ""
	}
	var sb strings.Builder
	for {
		sentence := f.faker.Sentence(f.faker.Number(4, 12))
		if sb.Len() == 0 {
			if utf8.RuneCountInString(sentence) > maxChars {
				return truncateRunes(sentence, maxChars)
			}
			sb.WriteString(sentence)
			continue
		}
		if utf8.RuneCountInString(sb.String())+1+utf8.RuneCountInString(sentence) > maxChars {
			return sb.String()
		}
		sb.WriteByte(' ')
		sb.WriteString(sentence)
	}
}

func (f *FakeFabricator) Timestamp(from, to time.Time) time.Time {
	if !to.After(from) {
		return from.UTC().Truncate(time.Microsecond)
	}
	offset := time.Duration(f.faker.Rand.Int63n(int64(to.Sub(from)) + 1))
	// postgres stores microseconds
	return from.Add(offset).UTC().Truncate(time.Microsecond)
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
