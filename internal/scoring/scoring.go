// Package scoring classifies a lead's purchase intent from intake answers.
package scoring

import "github.com/LeventeLantos/openhouse-followup/internal/model"

// Points awards one point each for pre-approval, having no agent and a
// 0-30 day timeline.
func Points(preApproved model.PreApproval, hasAgent bool, timeline model.Timeline) int {
	p := 0
	if preApproved == model.PreApprovedYes {
		p++
	}
	if !hasAgent {
		p++
	}
	if timeline == model.Timeline0to30Days {
		p++
	}
	return p
}

func Score(preApproved model.PreApproval, hasAgent bool, timeline model.Timeline) model.Score {
	switch Points(preApproved, hasAgent, timeline) {
	case 3:
		return model.ScoreHot
	case 2:
		return model.ScoreWarm
	default:
		return model.ScoreCold
	}
}
