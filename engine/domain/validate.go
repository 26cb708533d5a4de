package domain

import "fmt"

// ValidateCriteria checks that every enumerated value in the criteria belongs
// to its closed vocabulary and that the budget range is coherent.
func ValidateCriteria(c Criteria) error {
	if c.Budget != nil {
		if c.Budget.Min < 0 {
			return NewValidationError("budget.min", fmt.Sprintf("%v", c.Budget.Min), ErrInvalidBudget)
		}
		if c.Budget.Max > 0 && c.Budget.Max < c.Budget.Min {
			return NewValidationError("budget.max", fmt.Sprintf("%v", c.Budget.Max), ErrInvalidBudget)
		}
	}
	for _, t := range c.UseCases {
		if !ValidUseCaseTags[t] {
			return NewValidationError("use_cases", string(t), ErrUnknownUseCase)
		}
	}
	for _, b := range c.BodyTypes {
		if !ValidBodyTypes[b] {
			return NewValidationError("body_types", string(b), ErrUnknownBodyType)
		}
	}
	for _, f := range c.FuelTypes {
		if !ValidFuelTypes[f] {
			return NewValidationError("fuel_types", string(f), ErrUnknownFuelType)
		}
	}
	return nil
}

// ValidateSearchRequest checks the ranking pipeline's entry contract: free-text
// requirements and a non-empty candidate id set.
func ValidateSearchRequest(requirements []string, candidateIDs []string) error {
	nonEmpty := false
	for _, r := range requirements {
		if r != "" {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		return NewValidationError("requirements", "", ErrEmptyRequirements)
	}
	if len(candidateIDs) == 0 {
		return NewValidationError("candidate_ids", "", ErrNoCandidates)
	}
	return nil
}
