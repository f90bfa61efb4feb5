package calculator

// Outcome of a withdrawal vote.
const (
	VotePending  = "pending"
	VoteApproved = "approved"
	VoteRejected = "rejected"
)

// Majority reports whether votes is a strict majority of members.
func Majority(votes, members int) bool {
	return members > 0 && votes > members/2
}

// VoteOutcome decides a withdrawal from its tally. Approval wins if both
// sides somehow reach a majority.
func VoteOutcome(approvals, rejections, members int) string {
	switch {
	case Majority(approvals, members):
		return VoteApproved
	case Majority(rejections, members):
		return VoteRejected
	default:
		return VotePending
	}
}
