package calls

import "context"

// Summary aggregates a user's call history by outcome.
type Summary struct {
	Identity string `json:"identity"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	ActiveCalls    int `json:"active_calls"`

	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// Summarize aggregates every call where identity is either party.
func (s *Service) Summarize(ctx context.Context, identity string) (Summary, error) {
	rows, err := s.store.ListByParty(ctx, identity)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Identity: identity}
	for _, rec := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += rec.DurationSeconds
		switch rec.Direction {
		case DirectionInbound:
			out.InboundCalls++
		case DirectionOutbound:
			out.OutboundCalls++
		}
		switch rec.Status {
		case CallStatusCompleted:
			out.CompletedCalls++
		case CallStatusFailed:
			out.FailedCalls++
		case CallStatusNoAnswer:
			out.NoAnswerCalls++
		default:
			out.ActiveCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
