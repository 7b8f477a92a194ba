package entitlements

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Rank orders plans so the best of several subscriptions can be picked.
func (p Plan) Rank() int {
	switch p {
	case PlanPro:
		return 1
	default:
		return 0
	}
}
