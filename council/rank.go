package council

import (
	"math"
	"sort"
)

// Aggregate converts the parsed peer rankings into per-agent standings.
// Positions are 1-indexed within each ranker's list; labels missing from
// the mapping are ignored. Agents never mentioned by any ranker are absent
// from the output. Standings are sorted ascending by average rank; exact
// ties keep first-seen order, which is an artifact of the stable sort and
// not a contract.
func Aggregate(stage2 []Stage2Result, labelToModel map[string]LabelInfo) []Standing {
	positions := make(map[string][]int)
	var order []string

	for _, ranking := range stage2 {
		for pos, label := range ranking.ParsedRanking {
			info, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := positions[info.AgentTitle]; !seen {
				order = append(order, info.AgentTitle)
			}
			positions[info.AgentTitle] = append(positions[info.AgentTitle], pos+1)
		}
	}

	// Scan the mapping in label order for model resolution so the result
	// is deterministic. If two agents share a title (unsupported but
	// possible), the first label's model wins.
	labels := make([]string, 0, len(labelToModel))
	for label := range labelToModel {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	modelFor := func(title string) string {
		for _, label := range labels {
			if labelToModel[label].AgentTitle == title {
				return labelToModel[label].Model
			}
		}
		return ""
	}

	standings := make([]Standing, 0, len(order))
	for _, title := range order {
		pos := positions[title]
		sum := 0
		for _, p := range pos {
			sum += p
		}
		avg := float64(sum) / float64(len(pos))
		standings = append(standings, Standing{
			AgentTitle:    title,
			Model:         modelFor(title),
			AverageRank:   math.Round(avg*100) / 100,
			RankingsCount: len(pos),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].AverageRank < standings[j].AverageRank
	})
	return standings
}
