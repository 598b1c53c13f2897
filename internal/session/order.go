package session

import (
	"math/rand"

	"mocktest_backend/internal/model"
)

// DefaultSubjectOrder is the block order used when none is configured.
var DefaultSubjectOrder = []string{"phy", "chem", "maths"}

// Section is a contiguous run of the ordered sequence sharing a subject.
// Subject is "" for the unclassified remainder.
type Section struct {
	Subject string `json:"subject"`
	Start   int    `json:"start"`
	Count   int    `json:"count"`
}

// BuildOrder groups questions into subject buckets by their first subject
// tag, shuffles each bucket independently with a Fisher-Yates shuffle and
// concatenates the buckets in subjectOrder followed by the remainder.
func BuildOrder(questions []model.Question, subjectOrder []string, rng *rand.Rand) ([]string, []Section) {
	if len(subjectOrder) == 0 {
		subjectOrder = DefaultSubjectOrder
	}

	slot := make(map[string]int, len(subjectOrder))
	for i, subject := range subjectOrder {
		if _, dup := slot[subject]; !dup {
			slot[subject] = i
		}
	}

	buckets := make([][]string, len(subjectOrder)+1)
	rest := len(subjectOrder)
	for i := range questions {
		idx, ok := slot[questions[i].PrimarySubject()]
		if !ok {
			idx = rest
		}
		buckets[idx] = append(buckets[idx], questions[i].ID)
	}

	order := make([]string, 0, len(questions))
	var sections []Section
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		rng.Shuffle(len(bucket), func(a, b int) {
			bucket[a], bucket[b] = bucket[b], bucket[a]
		})
		subject := ""
		if i < rest {
			subject = subjectOrder[i]
		}
		sections = append(sections, Section{Subject: subject, Start: len(order), Count: len(bucket)})
		order = append(order, bucket...)
	}
	return order, sections
}

// SectionsFor recomputes the subject runs of an existing order.
func SectionsFor(order []string, byID map[string]*model.Question) []Section {
	var sections []Section
	for i, id := range order {
		subject := ""
		if q, ok := byID[id]; ok {
			subject = q.PrimarySubject()
		}
		if n := len(sections); n > 0 && sections[n-1].Subject == subject {
			sections[n-1].Count++
			continue
		}
		sections = append(sections, Section{Subject: subject, Start: i, Count: 1})
	}
	return sections
}

// IsPermutation reports whether order holds exactly the given ids.
func IsPermutation(order []string, ids []string) bool {
	if len(order) != len(ids) {
		return false
	}
	seen := make(map[string]int, len(ids))
	for _, id := range ids {
		seen[id]++
	}
	for _, id := range order {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
