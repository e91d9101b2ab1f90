package render

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// NewsJSON is the document form of a news item.
type NewsJSON struct {
	ID      string `json:"Id"`
	Link    string `json:"Link"`
	Date    int64  `json:"Date"`
	Message string `json:"Message"`
}

// newsAge renders the time since publication as whole days, hours or minutes.
func newsAge(elapsed time.Duration) string {
	switch {
	case elapsed.Hours() > 24:
		return fmt.Sprintf("%dd", int(math.Floor(elapsed.Hours()/24)))
	case elapsed.Hours() > 1:
		return fmt.Sprintf("%dh", int(math.Floor(elapsed.Hours())))
	default:
		return fmt.Sprintf("%dm", int(math.Floor(elapsed.Minutes())))
	}
}

func (r *Renderer) news(in Input, out *Output) error {
	events := make([]worldstate.NewsEvent, len(in.Snapshot.Events))
	copy(events, in.Snapshot.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Sec > events[j].Date.Sec
	})

	var page, raw strings.Builder
	docs := []NewsJSON{}
	for _, e := range events {
		msg := e.Headline()
		age := newsAge(in.Now.Sub(time.Unix(e.Date.Sec, 0)))
		fmt.Fprintf(&page, `<div>[%s] <a href="%s">%s</a></div>`, age, html.EscapeString(e.Prop), html.EscapeString(msg))
		raw.WriteString(joinLine(e.ID, e.Prop, strconv.FormatInt(e.Date.Sec, 10), msg))
		docs = append(docs, NewsJSON{ID: e.ID, Link: e.Prop, Date: e.Date.Sec, Message: msg})
	}

	out.add(worldstate.CategoryNews, "news.html", []byte(page.String()))
	out.add(worldstate.CategoryNews, "newsraw.txt", []byte(raw.String()))
	return out.addJSON(worldstate.CategoryNews, "news.json", docs)
}
