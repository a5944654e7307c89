package cache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/redflag/internal/domain"
)

func assessmentKey(id string) string {
	return "assessment:" + id
}

func counterKey(key string) string {
	return "counter:" + key
}

func encodeAssessment(a *domain.Assessment) ([]byte, error) {
	if a == nil || a.ID == "" {
		return nil, fmt.Errorf("assessment with id is required")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assessment %s: %w", a.ID, err)
	}
	return data, nil
}

func decodeAssessment(data []byte) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode cached assessment: %w", err)
	}
	return &a, nil
}
