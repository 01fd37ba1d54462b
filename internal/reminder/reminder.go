// Package reminder composes the daily expiry reminder and delivers it on a
// schedule.
package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/eatmefirst/internal/lifecycle"
	"github.com/erazemk/eatmefirst/internal/model"
)

// Kind tags every reminder so receivers can route it.
const Kind = "expiry-reminder"

const (
	defaultTitle = "🍎 Food Expiry Alert"
	todayTitle   = "⚠️ Food Expiring Today!"
	maxNames     = 3
)

// Reminder is one notification ready for delivery.
type Reminder struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Kind  string `json:"kind"`
}

// Groups holds item names split by how soon they expire.
type Groups struct {
	Today    []string
	Tomorrow []string
	Soon     []string
}

// Empty reports whether no item is expiring.
func (g Groups) Empty() bool {
	return len(g.Today)+len(g.Tomorrow)+len(g.Soon) == 0
}

// Group buckets expiring items by days remaining at now.
func Group(items []model.Item, now time.Time) Groups {
	var g Groups
	for _, item := range items {
		switch lifecycle.BucketOf(lifecycle.DaysRemaining(item.ExpiryDate, now)) {
		case lifecycle.BucketToday:
			g.Today = append(g.Today, item.Name)
		case lifecycle.BucketTomorrow:
			g.Tomorrow = append(g.Tomorrow, item.Name)
		default:
			g.Soon = append(g.Soon, item.Name)
		}
	}
	return g
}

// Compose builds the reminder for g. Items expiring today take precedence
// over tomorrow, and tomorrow over later. It returns false when there is
// nothing to send.
func Compose(g Groups) (Reminder, bool) {
	r := Reminder{Title: defaultTitle, Kind: Kind}
	switch {
	case len(g.Today) > 0:
		r.Title = todayTitle
		r.Body = listNames(g.Today) + " expire today!"
	case len(g.Tomorrow) > 0:
		r.Body = listNames(g.Tomorrow) + " expire tomorrow."
	case len(g.Soon) > 0:
		r.Body = fmt.Sprintf("%d %s expiring soon. Check your kitchen!", len(g.Soon), plural(len(g.Soon), "item"))
	default:
		return Reminder{}, false
	}
	return r, true
}

func listNames(names []string) string {
	if len(names) <= maxNames {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:maxNames], ", "), len(names)-maxNames)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
