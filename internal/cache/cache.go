// Package cache remembers raw to cleaned transcript pairs so near-duplicate
// transcripts skip the remote cleanup call.
package cache

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lazypower/tether/internal/store"
)

const (
	DefaultMaxSize   = 100
	DefaultThreshold = 0.8
	DefaultRetention = 30 * 24 * time.Hour
	DefaultKeepUses  = 5
)

// Entry is one cached cleanup result.
type Entry struct {
	Raw       string `json:"raw"`
	Cleaned   string `json:"cleaned"`
	Timestamp int64  `json:"timestamp"` // last use, unix millis
	Uses      int    `json:"uses"`
}

// Cache is the persisted transcription cache.
type Cache struct {
	kv  store.KV
	log *slog.Logger

	MaxSize   int
	Threshold float64       // minimum Jaccard similarity for a hit
	Retention time.Duration // entries unused for longer are pruned...
	KeepUses  int           // ...unless used more than this many times
	Now       func() time.Time
}

// New creates a Cache with the default policy.
func New(kv store.KV, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		kv:        kv,
		log:       logger,
		MaxSize:   DefaultMaxSize,
		Threshold: DefaultThreshold,
		Retention: DefaultRetention,
		KeepUses:  DefaultKeepUses,
		Now:       time.Now,
	}
}

// Add records a new pair, ranks the cache by (uses desc, last use desc) and
// keeps the top MaxSize entries.
func (c *Cache) Add(raw, cleaned string) {
	c.update(func(entries []Entry) ([]Entry, bool) {
		entries = append(entries, Entry{
			Raw:       raw,
			Cleaned:   cleaned,
			Timestamp: c.Now().UnixMilli(),
			Uses:      1,
		})
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Uses != entries[j].Uses {
				return entries[i].Uses > entries[j].Uses
			}
			return entries[i].Timestamp > entries[j].Timestamp
		})
		if len(entries) > c.MaxSize {
			entries = entries[:c.MaxSize]
		}
		return entries, true
	})
}

// FindMatch returns the cleaned text of the most similar cached transcript,
// if its similarity reaches Threshold. Ties go to the earlier entry. A hit
// bumps the entry's use count and last-use time.
func (c *Cache) FindMatch(raw string) (string, bool) {
	query := wordSet(raw)
	var (
		cleaned string
		hit     bool
	)
	c.update(func(entries []Entry) ([]Entry, bool) {
		best, bestSim := -1, 0.0
		for i := range entries {
			sim := jaccard(query, wordSet(entries[i].Raw))
			if sim >= c.Threshold && sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best < 0 {
			return entries, false
		}
		entries[best].Uses++
		entries[best].Timestamp = c.Now().UnixMilli()
		cleaned, hit = entries[best].Cleaned, true
		c.log.Debug("transcription cache hit", "similarity", bestSim, "uses", entries[best].Uses)
		return entries, true
	})
	return cleaned, hit
}

// ClearOldEntries drops entries unused for longer than Retention unless they
// were used more than KeepUses times. It returns how many were dropped.
func (c *Cache) ClearOldEntries() int {
	now := c.Now()
	removed := 0
	c.update(func(entries []Entry) ([]Entry, bool) {
		kept := entries[:0]
		for _, e := range entries {
			age := now.Sub(time.UnixMilli(e.Timestamp))
			if age <= c.Retention || e.Uses > c.KeepUses {
				kept = append(kept, e)
			}
		}
		removed = len(entries) - len(kept)
		return kept, removed > 0
	})
	return removed
}

// Entries returns the cache in its current order.
func (c *Cache) Entries() []Entry {
	return c.load()
}

func (c *Cache) load() []Entry {
	var entries []Entry
	if _, err := store.LoadJSON(c.kv, store.KeyTranscripts, &entries); err != nil {
		c.log.Warn("stored transcription cache unreadable, treating as empty", "error", err)
		return nil
	}
	return entries
}

// update applies fn to the persisted entries inside one store transaction.
// fn reports whether the result should be written.
func (c *Cache) update(fn func([]Entry) ([]Entry, bool)) {
	err := store.UpdateJSON(c.kv, store.KeyTranscripts, func(entries *[]Entry, _ bool) bool {
		next, write := fn(*entries)
		if next == nil {
			next = []Entry{}
		}
		*entries = next
		return write
	})
	if err != nil {
		c.log.Warn("transcription cache update", "error", err)
	}
}

// wordSet lowercases s and splits it on whitespace.
func wordSet(s string) map[string]struct{} {
	words := strings.Fields(cases.Lower(language.Und).String(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Similarity is the word-set Jaccard index of two transcripts.
func Similarity(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}
