package credit

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/briar/pkg/models"
)

// WaterfallInstrument is one claim inside a tier.
type WaterfallInstrument struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	IssuerEntityID   string           `json:"issuer_entity_id"`
	IssuerEntityName string           `json:"issuer_entity_name"`
	OutstandingMinor int64            `json:"outstanding_minor"`
	MaturityDate     *models.Date     `json:"maturity_date,omitempty"`
	Seniority        models.Seniority `json:"seniority"`
}

// Tier is one rung of the claims waterfall. Instruments share a tier only
// when they rank equally on (seniority, security type) and are backed by the
// same guarantor set; a first lien bond guaranteed by three opcos is not pari
// passu with an unguaranteed one.
type Tier struct {
	Rank           int                   `json:"rank"`
	Seniority      models.Seniority      `json:"seniority"`
	SecurityType   models.SecurityType   `json:"security_type"`
	GuarantorIDs   []string              `json:"guarantor_entity_ids"`
	GuarantorNames []string              `json:"guarantor_entity_names"`
	Instruments    []WaterfallInstrument `json:"instruments"`

	// OutstandingMinor is the tier total; CumulativeMinor includes every tier
	// ranked at or above this one.
	OutstandingMinor int64 `json:"outstanding_minor"`
	CumulativeMinor  int64 `json:"cumulative_minor"`
}

// WaterfallResult is the ordered hypothetical priority-of-claims view.
type WaterfallResult struct {
	CompanyID             string `json:"company_id"`
	Tiers                 []Tier `json:"tiers"`
	TotalOutstandingMinor int64  `json:"total_outstanding_minor"`
}

// Waterfall ranks a company's active debt by claim priority. Ordering is
// seniority first, security type second; within equal rank, tiers split by
// guarantor set. This is a static structural ranking, not a recovery model.
func Waterfall(capture *models.CompanyCapture) WaterfallResult {
	res := WaterfallResult{CompanyID: capture.Company.ID}

	entities := capture.EntityByID()
	guarantees := capture.GuaranteesByInstrument()

	type tierKey struct {
		seniorityRank int
		securityRank  int
		guarantorSet  string
	}
	tiers := make(map[tierKey]*Tier)

	for _, d := range capture.ActiveInstruments() {
		ids := guarantorSet(guarantees[d.ID])
		key := tierKey{
			seniorityRank: d.Seniority.Rank(),
			securityRank:  d.SecurityType.Rank(),
			guarantorSet:  strings.Join(ids, ","),
		}

		t, ok := tiers[key]
		if !ok {
			t = &Tier{
				Seniority:    d.Seniority,
				SecurityType: d.SecurityType,
				GuarantorIDs: ids,
			}
			for _, id := range ids {
				name := id
				if e, ok := entities[id]; ok {
					name = e.Name
				}
				t.GuarantorNames = append(t.GuarantorNames, name)
			}
			tiers[key] = t
		}

		issuerName := d.IssuerEntityID
		if e, ok := entities[d.IssuerEntityID]; ok {
			issuerName = e.Name
		}
		t.Instruments = append(t.Instruments, WaterfallInstrument{
			ID:               d.ID,
			Name:             d.Name,
			IssuerEntityID:   d.IssuerEntityID,
			IssuerEntityName: issuerName,
			OutstandingMinor: d.Outstanding(),
			MaturityDate:     d.MaturityDate,
			Seniority:        d.Seniority,
		})
		t.OutstandingMinor += d.Outstanding()
		res.TotalOutstandingMinor += d.Outstanding()
	}

	ordered := make([]tierKey, 0, len(tiers))
	for k := range tiers {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.seniorityRank != b.seniorityRank {
			return a.seniorityRank < b.seniorityRank
		}
		if a.securityRank != b.securityRank {
			return a.securityRank < b.securityRank
		}
		// More guarantor backing ranks ahead within an equal contractual
		// rank; ties break lexically for determinism.
		la, lb := len(tiers[a].GuarantorIDs), len(tiers[b].GuarantorIDs)
		if la != lb {
			return la > lb
		}
		return a.guarantorSet < b.guarantorSet
	})

	var cumulative int64
	for i, k := range ordered {
		t := tiers[k]
		t.Rank = i + 1
		sort.Slice(t.Instruments, func(a, b int) bool {
			if t.Instruments[a].OutstandingMinor != t.Instruments[b].OutstandingMinor {
				return t.Instruments[a].OutstandingMinor > t.Instruments[b].OutstandingMinor
			}
			return t.Instruments[a].Name < t.Instruments[b].Name
		})
		cumulative += t.OutstandingMinor
		t.CumulativeMinor = cumulative
		res.Tiers = append(res.Tiers, *t)
	}

	return res
}

// guarantorSet returns the sorted, de-duplicated guarantor ids of the edges.
func guarantorSet(gs []*models.Guarantee) []string {
	if len(gs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(gs))
	ids := make([]string, 0, len(gs))
	for _, g := range gs {
		if !seen[g.GuarantorEntityID] {
			seen[g.GuarantorEntityID] = true
			ids = append(ids, g.GuarantorEntityID)
		}
	}
	sort.Strings(ids)
	return ids
}
