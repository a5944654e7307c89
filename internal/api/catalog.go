package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/redflag/internal/domain"
)

// RuleInfo is the public view of one indicator.
type RuleInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Weight      domain.Weight `json:"weight"`
	Points      int           `json:"points"`
	Condition   string        `json:"condition"`
	Explanation string        `json:"explanation"`
}

// NoteInfo is the public view of one contextual note rule.
type NoteInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Condition   string `json:"condition"`
	Explanation string `json:"explanation"`
}

// RulesResponse is the response for GET /rules.
type RulesResponse struct {
	Version         string              `json:"version"`
	DefaultIndustry string              `json:"defaultIndustry"`
	Thresholds      map[string]float64  `json:"thresholds"`
	Mileage         domain.MileageRates `json:"mileage"`
	Indicators      []RuleInfo          `json:"indicators"`
	Notes           []NoteInfo          `json:"notes"`
}

// GetRules handles GET /rules.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	rs := h.engine.Evaluator().Ruleset()

	resp := RulesResponse{
		Version:         rs.Version,
		DefaultIndustry: rs.DefaultIndustry,
		Thresholds:      rs.Thresholds,
		Mileage:         rs.Mileage,
		Indicators:      make([]RuleInfo, 0, len(rs.Indicators)),
		Notes:           make([]NoteInfo, 0, len(rs.Notes)),
	}
	for _, ind := range rs.Indicators {
		resp.Indicators = append(resp.Indicators, RuleInfo{
			ID:          ind.ID,
			Name:        ind.Name,
			Weight:      ind.Weight,
			Points:      ind.Weight.Points(),
			Condition:   ind.Condition,
			Explanation: ind.Explanation,
		})
	}
	for _, n := range rs.Notes {
		resp.Notes = append(resp.Notes, NoteInfo{
			ID:          n.ID,
			Name:        n.Name,
			Condition:   n.Condition,
			Explanation: n.Explanation,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListIndustries handles GET /industries.
func (h *Handler) ListIndustries(w http.ResponseWriter, r *http.Request) {
	rs := h.engine.Evaluator().Ruleset()

	infos := make([]domain.IndustryInfo, 0, len(rs.Industries))
	for _, p := range rs.Industries {
		infos = append(infos, h.industryInfo(p, false))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"industries": infos,
		"count":      len(infos),
		"default":    rs.DefaultIndustry,
	})
}

// GetIndustry handles GET /industries/{id}. Resolution is total: unknown ids
// return the default profile marked as a fallback.
func (h *Handler) GetIndustry(w http.ResponseWriter, r *http.Request) {
	p, found := h.engine.ResolveIndustryProfile(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.industryInfo(p, !found))
}

func (h *Handler) industryInfo(p domain.IndustryProfile, fallback bool) domain.IndustryInfo {
	exceptions := make([]string, 0, len(p.Exceptions))
	for _, ex := range p.Exceptions {
		exceptions = append(exceptions, ex.ID)
	}
	return domain.IndustryInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Thresholds:  h.engine.Evaluator().EffectiveThresholds(p.ID),
		Exceptions:  exceptions,
		Fallback:    fallback,
	}
}
