package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/common"
)

func table(out io.Writer, header string, rows func(w io.Writer)) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	return w.Flush()
}

func syncMark(id models.ID) string {
	if id.Kind() == models.KindProvisional {
		return "local"
	}
	return "synced"
}

func printUsers(out io.Writer, users []models.User, current models.ID) error {
	return table(out, "ID\tNAME\tROLE\tREVIEWS\tDEMOS\tCALLBACKS\tSTATE", func(w io.Writer) {
		for _, u := range users {
			name := u.Name
			if u.ID == current {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", u.ID, name, u.Role,
				u.Goals.Reviews, u.Goals.Demos, u.Goals.Callbacks, syncMark(u.ID))
		}
	})
}

func printBoard(out io.Writer, c models.Category, entries []engine.LeaderboardEntry) error {
	fmt.Fprintf(out, "%s\n", c)
	return table(out, "#\tNAME\tTODAY\tGOAL", func(w io.Writer) {
		for i, e := range entries {
			mark := ""
			if e.Goal > 0 && e.Count >= e.Goal {
				mark = " done"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d%s\n", i+1, e.User.Name, e.Count, e.Goal, mark)
		}
	})
}

func printAppointments(out io.Writer, appts []models.Appointment, users map[models.ID]string) error {
	return table(out, "ID\tWHEN\tCLIENT\tOWNER\tDEMO\tSTATE", func(w io.Writer) {
		for _, ap := range appts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", ap.ID, ap.ScheduledAt.Local().Format(time.DateTime),
				ap.ClientName, users[ap.UserID], ap.CountsAsDemo, syncMark(ap.ID))
		}
	})
}

func printFeed(out io.Writer, posts []models.FeedPost) {
	for _, p := range posts {
		tag := ""
		if p.Auto {
			tag = " (auto)"
		}
		fmt.Fprintf(out, "[%s] %s%s: %s  (%d likes, %s)\n", p.ID, p.UserName, tag, p.Content, len(p.Likes), syncMark(p.ID))
		for _, c := range p.Comments {
			fmt.Fprintf(out, "    [%s] %s: %s\n", c.ID, c.UserName, c.Content)
		}
	}
}

func printEntries(out io.Writer, entries []queue.Entry) error {
	return table(out, "SEQ\tOP\tTABLE\tRECORD\tATTEMPTS\tLAST ERROR", func(w io.Writer) {
		for _, e := range entries {
			rec := e.Op.ID
			if e.Op.Type != common.OpDelete && e.Op.Type != common.OpUpdate {
				rec = e.Op.LocalID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", e.Seq, e.Op.Type, e.Op.Table, rec, e.Attempts, e.LastError)
		}
	})
}
