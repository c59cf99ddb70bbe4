package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/newsweave/internal/service"
)

// ClusterRunTable lists each cluster of a run with its members. Noise comes
// last.
func ClusterRunTable(run service.ClusterRunSnapshot) string {
	rows := make([][]string, 0, len(run.Clusters))
	var noise []string
	for _, c := range run.Clusters {
		if c.Noise {
			noise = c.MemberIDs
			continue
		}
		rows = append(rows, []string{c.ID, strconv.Itoa(len(c.MemberIDs)), strings.Join(c.MemberIDs, ", ")})
	}
	if len(noise) > 0 {
		rows = append(rows, []string{"noise", strconv.Itoa(len(noise)), strings.Join(noise, ", ")})
	}
	return RenderTable([]string{"Cluster", "Size", "Documents"}, rows, []Alignment{AlignLeft, AlignRight, AlignLeft})
}

// ClusterRunSummary is the one-line header printed above a run table.
func ClusterRunSummary(run service.ClusterRunSnapshot) string {
	stories := 0
	for _, c := range run.Clusters {
		if !c.Noise {
			stories++
		}
	}
	return fmt.Sprintf("Run %s: %d documents, %d stories (eps=%g, min_samples=%d)",
		run.ID, run.DocumentCount, stories, run.Eps, run.MinSamples)
}

// ClusterRunListTable lists run headers.
func ClusterRunListTable(runs []service.ClusterRunSnapshot) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(r.DocumentCount),
			strconv.FormatFloat(r.Eps, 'g', -1, 64),
			strconv.Itoa(r.MinSamples),
		}
	}
	return RenderTable([]string{"ID", "Created", "Documents", "Eps", "Min Samples"}, rows,
		[]Alignment{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight})
}

// AttributionTable lists one row per generated paragraph.
func AttributionTable(entries []service.AttributionEntrySnapshot) string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		sources := make([]string, len(e.Sources))
		for j, s := range e.Sources {
			if s.Similarity > 0 {
				sources[j] = fmt.Sprintf("%s (%.2f)", s.DocumentID, s.Similarity)
			} else {
				sources[j] = s.DocumentID
			}
		}
		detail := strings.Join(sources, ", ")
		if e.Error != "" {
			detail = e.Error
		}
		rows[i] = []string{strconv.Itoa(e.ChunkIndex), string(e.Status), detail}
	}
	return RenderTable([]string{"Paragraph", "Status", "Sources"}, rows, []Alignment{AlignRight, AlignLeft, AlignLeft})
}
