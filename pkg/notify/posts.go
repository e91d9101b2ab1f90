package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/reconcile"
	"github.com/agentstation/worldfeed/pkg/render"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// PostKind selects the channel a post is routed to.
type PostKind string

const (
	PostInvasionNew       PostKind = "invasion.new"
	PostInvasionProgress  PostKind = "invasion.progress"
	PostInvasionCompleted PostKind = "invasion.completed"
	PostAlert             PostKind = "alert"
	PostTacticalAlert     PostKind = "alert.tactical"
)

// Post is one social status update.
type Post struct {
	Kind     PostKind `json:"kind"`
	EntityID string   `json:"entity_id"`
	Text     string   `json:"text"`
}

// Composer writes the social posts of a cycle.
type Composer struct {
	names    names.Resolver
	renderer *render.Renderer
	printer  *message.Printer
}

// NewComposer creates a Composer.
func NewComposer(resolver names.Resolver) *Composer {
	return &Composer{
		names:    resolver,
		renderer: render.New(resolver),
		printer:  message.NewPrinter(language.English),
	}
}

// Compose returns the posts for the changes of a cycle. Progress posts are
// only written on long ticks.
func (c *Composer) Compose(res *reconcile.Result, longTick bool, now time.Time) []Post {
	var posts []Post
	if res.Invasions != nil {
		for _, ch := range res.Invasions.New {
			if ch.New.Completed {
				continue
			}
			posts = append(posts, Post{Kind: PostInvasionNew, EntityID: ch.ID, Text: c.NewInvasion(ch.New.Entity)})
		}
		for _, ch := range res.Invasions.Completed {
			if !ch.New.Entity.Completed {
				// Vanished from the feed without a result.
				continue
			}
			posts = append(posts, Post{Kind: PostInvasionCompleted, EntityID: ch.ID, Text: c.CompletedInvasion(ch.New.Entity, res.FeedTime)})
		}
		if longTick {
			updates := append(append([]worldstate.Change[worldstate.Invasion]{}, res.Invasions.Updated...), res.Invasions.Unchanged...)
			for _, ch := range updates {
				if ch.New.Completed || ch.Progress == nil {
					continue
				}
				posts = append(posts, Post{Kind: PostInvasionProgress, EntityID: ch.ID, Text: c.InvasionProgress(ch.New.Entity, ch.Progress)})
			}
		}
	}
	if res.Alerts != nil {
		for _, ch := range res.Alerts.New {
			text, ok := c.NewAlert(ch.New.Entity, now)
			if !ok {
				continue
			}
			kind := PostAlert
			if ch.New.Entity.Tactical != nil {
				kind = PostTacticalAlert
			}
			posts = append(posts, Post{Kind: kind, EntityID: ch.ID, Text: text})
		}
	}
	return posts
}

// NewInvasion formats a newly started invasion.
func (c *Composer) NewInvasion(inv worldstate.Invasion) string {
	invader, defender := render.InvasionSides(inv)
	atk, def := c.renderer.InvasionRewards(inv)
	planet, region := c.names.Region(inv.Node)

	var rewards strings.Builder
	if invader != "Infestation" {
		rewards.WriteString(invader + ": " + atk + ", ")
	}
	rewards.WriteString(defender + ": " + def)

	return fmt.Sprintf("%s (%s) - %s - Goal: %s - Rewards: %s",
		planet, region, c.names.String(inv.LocTag), c.printer.Sprintf("%d", inv.Goal), rewards.String())
}

// InvasionProgress formats the progress of a running invasion, shortened to
// fit a post.
func (c *Composer) InvasionProgress(inv worldstate.Invasion, p *worldstate.Progress) string {
	invader, defender := render.InvasionSides(inv)
	atk, def := c.renderer.InvasionRewards(inv)
	planet, _ := c.names.Region(inv.Node)

	sign := ""
	if p.Percent > p.Previous {
		sign = "+"
	}
	gaining := defender
	if p.Winning == worldstate.SideAttacker {
		gaining = invader
	}
	eta := p.ETA
	if eta == "" {
		eta = "?"
	}
	tampered := ""
	if p.Tampered {
		tampered = " (TAMPERED)"
	}

	text := fmt.Sprintf("%s (%s) - %.2f%% (%s%.2f%%) - Goal: %s/%s - %s gaining - %s | %s - ETA: %s%s",
		planet, invader, p.Percent, sign, p.Change,
		c.printer.Sprintf("%d", inv.Count), c.printer.Sprintf("%d", inv.Goal),
		gaining, atk, def, eta, tampered)
	return Shorten(text)
}

// CompletedInvasion formats the result of a finished invasion.
func (c *Composer) CompletedInvasion(inv worldstate.Invasion, feedTime int64) string {
	invader, defender := render.InvasionSides(inv)
	atk, def := c.renderer.InvasionRewards(inv)
	planet, _ := c.names.Region(inv.Node)

	outcome := defender + " has defended."
	if inv.Goal > 0 && inv.Count >= inv.Goal {
		outcome = invader + " has conquered."
	}
	hours := float64(feedTime-inv.Activation.Sec) / 3600
	return fmt.Sprintf("%s (%s|%s) (%s | %s) has just completed after ~%.2f hours. %s",
		planet, invader, defender, atk, def, hours, outcome)
}

// NewAlert formats a new alert. Alerts rewarding credits only are not posted.
func (c *Composer) NewAlert(a worldstate.Alert, now time.Time) (string, bool) {
	info := a.MissionInfo
	rewards := c.renderer.AlertRewards(info.MissionReward)
	if !strings.Contains(rewards, "-") {
		return "", false
	}
	startsIn := (a.Activation.Sec - now.Unix()) / 60
	duration := (a.Expiry.Sec - a.Activation.Sec) / 60
	return fmt.Sprintf("%s | %s (%s) | %s | Starts in %dm | %dm | %s",
		names.PlanetWithRegion(c.names, info.Location),
		render.AlertMission(info),
		names.Faction(info.Faction),
		c.renderer.AlertDescription(a),
		startsIn, duration, rewards), true
}

// Shorten fits text into a post by dropping commas, then spaces.
func Shorten(text string) string {
	if utf8.RuneCountInString(text) <= constants.MaxPostLength {
		return text
	}
	text = strings.ReplaceAll(text, ",", "")
	if utf8.RuneCountInString(text) <= constants.MaxPostLength {
		return text
	}
	return strings.ReplaceAll(text, " ", "")
}
