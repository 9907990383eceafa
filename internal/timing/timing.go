package timing

import "github.com/dennisdiepolder/monti/livechat/internal/types"

// Extract computes the timing summary of the given sessions.
//
// For each metric family the average is the mean of the per-session averages
// and the longest is the maximum per-session longest, over the sessions that
// have the family populated. A family without samples yields zeros.
func Extract(sessions []types.Session) types.TimingSummary {
	var reaction, response, duration accumulator

	for _, s := range sessions {
		if s.Metrics == nil {
			continue
		}
		reaction.add(s.Metrics.Reaction)
		response.add(s.Metrics.Response)
		duration.add(s.Metrics.ChatDuration)
	}

	return types.TimingSummary{
		Reaction:     reaction.result(),
		Response:     response.result(),
		ChatDuration: duration.result(),
	}
}

// ResponseSeries flattens a summary into the values of the reaction/response chart
func ResponseSeries(s types.TimingSummary) []float64 {
	return []float64{s.Reaction.Avg, s.Reaction.Longest, s.Response.Avg, s.Response.Longest}
}

// DurationSeries flattens a summary into the values of the chat duration chart
func DurationSeries(s types.TimingSummary) []float64 {
	return []float64{s.ChatDuration.Avg, s.ChatDuration.Longest}
}

type accumulator struct {
	sum     float64
	longest float64
	n       int
}

func (a *accumulator) add(t *types.Timing) {
	if t == nil {
		return
	}
	a.sum += t.Avg
	if a.n == 0 || t.Longest > a.longest {
		a.longest = t.Longest
	}
	a.n++
}

func (a *accumulator) result() types.Timing {
	if a.n == 0 {
		return types.Timing{}
	}
	return types.Timing{Avg: a.sum / float64(a.n), Longest: a.longest}
}
