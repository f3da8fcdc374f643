package utils

import "context"

// ValidatorChain asks each validator in turn and returns the first verdict
// that is not VerdictUnknown.
type ValidatorChain []Validator

func (vc ValidatorChain) Lookup(ctx context.Context, domain string) Verdict {
	for _, v := range vc {
		if v == nil {
			continue
		}
		if verdict := v.Lookup(ctx, domain); verdict != VerdictUnknown {
			return verdict
		}
		if ctx.Err() != nil {
			break
		}
	}
	return VerdictUnknown
}
