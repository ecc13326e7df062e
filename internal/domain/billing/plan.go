package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uniedit/quotagate/internal/model"
)

// PlanInput describes a plan to create.
// An empty ID is replaced by a generated one; a zero PeriodLength falls back
// to model.DefaultPeriodLength.
type PlanInput struct {
	ID           string
	Name         string
	Description  string
	Operations   []string
	Quota        int64
	PeriodLength time.Duration
}

// PlanUpdate carries a partial plan update. Nil fields are left unchanged.
type PlanUpdate struct {
	Name         *string
	Description  *string
	Operations   []string
	Quota        *int64
	PeriodLength *time.Duration
}

func (u *PlanUpdate) apply(p *model.Plan) {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Operations != nil {
		p.Operations = normalizeOperations(u.Operations)
	}
	if u.Quota != nil {
		p.Quota = *u.Quota
	}
	if u.PeriodLength != nil {
		p.PeriodLength = *u.PeriodLength
	}
}

// validatePlan checks a plan about to be written.
func validatePlan(p *model.Plan) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidPlan)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	case p.Quota <= 0:
		return fmt.Errorf("%w: quota must be positive", ErrInvalidPlan)
	case len(p.Operations) == 0:
		return fmt.Errorf("%w: at least one operation is required", ErrInvalidPlan)
	case p.PeriodLength < time.Second:
		return fmt.Errorf("%w: period length must be at least 1s", ErrInvalidPlan)
	}
	return nil
}

// normalizeOperations trims names, drops blanks and removes duplicates, keeping order.
func normalizeOperations(ops []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(ops))
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		op = strings.TrimSpace(op)
		if op == "" {
			continue
		}
		if _, ok := seen[op]; ok {
			continue
		}
		seen[op] = struct{}{}
		out = append(out, op)
	}
	return out
}
