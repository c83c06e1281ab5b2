package synthesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Consolidate joins the articles of a cluster into the single text blob sent to
// the model. The blob opens with today's date so the model can fill creation_date
// and tell current announcements from upcoming ones.
func Consolidate(articles []types.Article, today time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"IMPORTANT CONTEXT: Today's date is %s. Use this for the 'creation_date' field and to determine if a job is current or upcoming.\n",
		today.Format(types.DateLayout)))
	for _, a := range articles {
		sb.WriteString("\n--- Source: ")
		sb.WriteString(a.URL)
		sb.WriteString(" ---\n\n")
		sb.WriteString(a.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
