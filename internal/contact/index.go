package contact

import (
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/phone"
)

// Index maps a canonical phone to the id of the recipient that owns it.
type Index struct {
	scheme phone.Scheme
	byKey  map[string]int64
}

// Build indexes recipients by canonical phone. When two recipients share a
// canonical phone the later one wins. Recipients without a usable phone are skipped.
func Build(scheme phone.Scheme, recipients []model.Recipient) Index {
	idx := Index{
		scheme: scheme,
		byKey:  make(map[string]int64, len(recipients)),
	}
	for _, r := range recipients {
		key := scheme.Normalize(r.Phone)
		if key == "" {
			continue
		}
		idx.byKey[key] = r.ID
	}
	return idx
}

func (i Index) Len() int {
	return len(i.byKey)
}

func (i Index) Lookup(raw string) (int64, bool) {
	key := i.scheme.Normalize(raw)
	if key == "" {
		return 0, false
	}
	id, ok := i.byKey[key]
	return id, ok
}

type Match struct {
	Phone       string `json:"phone"`
	RecipientID int64  `json:"recipient_id"`
}

type MatchResult struct {
	Matched   []Match  `json:"matched"`
	Unmatched []string `json:"unmatched"`
}

// MatchPhones resolves a list of raw phones against the index. Phones that
// collapse to the same canonical form are reported once, first occurrence wins.
func (i Index) MatchPhones(raw []string) MatchResult {
	res := MatchResult{
		Matched:   []Match{},
		Unmatched: []string{},
	}
	seen := make(map[string]struct{}, len(raw))

	for _, p := range raw {
		key := i.scheme.Normalize(p)
		if key == "" {
			res.Unmatched = append(res.Unmatched, p)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if id, ok := i.byKey[key]; ok {
			res.Matched = append(res.Matched, Match{Phone: key, RecipientID: id})
		} else {
			res.Unmatched = append(res.Unmatched, p)
		}
	}
	return res
}
