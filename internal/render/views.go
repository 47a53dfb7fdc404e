package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/k3a/html2text"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/observability"
	"github.com/tphakala/birdtarifa/internal/predictions"
)

const timeLayout = "2006-01-02 15:04"

func (r *Renderer) println(parts ...string) {
	fmt.Fprintln(r.w, strings.Join(parts, " "))
}

func (r *Renderer) header(title, subtitle string) {
	r.println(r.s.title.Render(title))
	if subtitle != "" {
		r.println(r.s.subtitle.Render(subtitle))
	}
	r.println()
}

func (r *Renderer) empty(title, subtitle string) {
	r.println(r.s.strong.Render(title))
	r.println(r.s.muted.Render(subtitle))
}

// Banner prints a one-line message; empty messages print nothing.
func (r *Renderer) Banner(kind BannerKind, msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	r.println(r.s.banners[kind].Render(msg))
}

// Health prints the backend status.
func (r *Renderer) Health(h *api.Health) {
	kind := BannerSuccess
	if h.Status != "ok" {
		kind = BannerWarning
	}
	r.Banner(kind, fmt.Sprintf("Backend %s (%s)", h.Status, h.Env))
}

// Sightings prints the recent sightings list.
func (r *Renderer) Sightings(list []api.Sighting, errMsg string) {
	r.header("Latest sightings", "Recent history of your sightings.")
	r.Banner(BannerError, errMsg)

	if len(list) == 0 {
		if errMsg == "" {
			r.empty("No sightings yet.", "Log your first outing to start the history.")
		}
		return
	}

	for _, s := range list {
		species := "Species not set"
		if s.SpeciesGuess != nil && *s.SpeciesGuess != "" {
			species = *s.SpeciesGuess
		}
		when := s.ObservedAt
		if when.IsZero() {
			when = s.CreatedAt
		}

		r.println(r.s.strong.Render(species), r.s.muted.Render("#"+strconv.FormatInt(s.ID, 10)))
		r.println(" ", r.s.muted.Render(s.Zone+" · "+when.Local().Format(timeLayout)))
		if s.Notes != nil && *s.Notes != "" {
			r.println(" ", *s.Notes)
		}
		if s.PhotoURL != nil && *s.PhotoURL != "" {
			r.println(" ", r.s.muted.Render("Photo: "+*s.PhotoURL))
		} else {
			r.println(" ", r.s.muted.Render("No photo"))
		}
	}
}

// Zones prints grouped zones and marks the selected value.
func (r *Renderer) Zones(groups []predictions.ZoneGroup, selected string) {
	r.header("Zones", "")
	for _, g := range groups {
		r.println(r.s.subtitle.Render(g.Label))
		for _, z := range g.Zones {
			marker := " "
			if z.ID == selected {
				marker = r.s.score.Render("*")
			}
			r.println(" ", marker, fmt.Sprintf("%-12s", z.ID), z.Name)
		}
	}
}

// Predictions prints the ranking with its leaderboard and badge.
func (r *Renderer) Predictions(ranking predictions.Ranking, errMsg string) {
	r.header("Likely birds", "Rule-based ranking by zone and month.")
	r.Banner(BannerError, errMsg)

	if ranking.Empty() {
		if errMsg == "" {
			r.empty("No results yet.", "Try another zone or load demo rules to get started.")
		}
		return
	}

	if ranking.Badge != nil {
		r.println(r.s.badge.Render(ranking.Badge.Label))
	}

	medals := []string{"1st", "2nd", "3rd"}
	cards := make([]string, 0, len(ranking.Leaderboard))
	for i, item := range ranking.Leaderboard {
		p := item.Prediction
		rows := []string{
			r.s.score.Render(medals[i]),
			r.s.strong.Render(p.Species),
			r.s.score.Render(formatScore(p.Score)),
		}
		if e := evidence(p); e != "" {
			rows = append(rows, r.s.muted.Render(e))
		}
		body := lipgloss.JoinVertical(lipgloss.Left, rows...)
		cards = append(cards, r.s.podium.Render(body))
	}
	r.println(lipgloss.JoinHorizontal(lipgloss.Top, cards...))

	for _, item := range ranking.Leaderboard {
		if reason := strings.TrimSpace(item.Prediction.Reason); reason != "" {
			r.println(r.s.muted.Render(fmt.Sprintf("%d. %s", item.Position, reason)))
		}
	}

	for _, item := range ranking.Rest {
		p := item.Prediction
		parts := []string{fmt.Sprintf("%2d.", item.Position), r.s.strong.Render(p.Species), r.s.score.Render(formatScore(p.Score))}
		if e := evidence(p); e != "" {
			parts = append(parts, r.s.muted.Render("· "+e))
		}
		r.println(parts...)
		if p.Reason != "" {
			r.println("   ", r.s.muted.Render(p.Reason))
		}
	}
}

// BirdInfo prints the species sheet for the panel state.
func (r *Renderer) BirdInfo(state predictions.PanelState) {
	title := state.Species
	if title == "" {
		title = "Species sheet"
	}
	r.header(title, "")
	r.Banner(BannerError, state.Err)
	if state.Loading {
		r.println(r.s.muted.Render("Loading sheet..."))
		return
	}

	info := state.Info
	if info == nil {
		return
	}

	var lines []string
	if info.Title != "" && info.Title != title {
		lines = append(lines, r.s.strong.Render(info.Title))
	}
	if info.PhotoURL != "" {
		lines = append(lines, "Photo: "+info.PhotoURL)
	} else {
		lines = append(lines, r.s.muted.Render("No photo · Try another name or zone."))
	}

	if extract := ExtractText(info.Extract); extract != "" {
		lines = append(lines, "", r.lg.NewStyle().Width(r.width).Render(extract))
	} else {
		lines = append(lines, "", r.s.muted.Render("No quick description found for this name."))
	}

	if info.PageURL != "" {
		lines = append(lines, "", "More: "+info.PageURL)
	}
	if info.Source != "" {
		lines = append(lines, r.s.muted.Render("Source: "+info.Source))
	}
	r.println(r.s.card.Render(strings.Join(lines, "\n")))
}

// Metrics prints per-route request totals.
func (r *Renderer) Metrics(summary []observability.RouteSummary) {
	if len(summary) == 0 {
		return
	}
	r.println()
	r.println(r.s.subtitle.Render("Backend requests"))
	for _, s := range summary {
		r.println(" ", fmt.Sprintf("%-6s %-24s %3d requests, %d errors", s.Method, s.Route, s.Requests, s.Errors))
	}
}

// ExtractText turns a possibly HTML extract into trimmed plain text.
func ExtractText(extract string) string {
	extract = strings.TrimSpace(extract)
	if extract == "" {
		return ""
	}
	if strings.ContainsAny(extract, "<&") {
		extract = html2text.HTML2Text(extract)
	}
	return strings.TrimSpace(extract)
}

// evidence summarises the observation metadata of a prediction, or "" when
// the backend sent none.
func evidence(p api.Prediction) string {
	var parts []string
	if n := p.ObservationsCount; n != nil {
		if *n == 1 {
			parts = append(parts, "1 observation")
		} else {
			parts = append(parts, strconv.Itoa(*n)+" observations")
		}
	}
	if d := p.LastSeenDaysAgo; d != nil {
		switch *d {
		case 0:
			parts = append(parts, "seen today")
		case 1:
			parts = append(parts, "last seen yesterday")
		default:
			parts = append(parts, "last seen "+strconv.Itoa(*d)+" days ago")
		}
	}
	return strings.Join(parts, ", ")
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
