package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// AlmanacData is the farm state an almanac issue is written from.
type AlmanacData struct {
	SimTime     string
	Season      string
	Weather     string
	Temperature float64

	Cash        float64
	NetProfit   float64
	Debt        float64
	CreditScore float64

	Plots    int
	Animals  int
	Machines int

	Prices []PriceLine

	// Recent event descriptions keyed by category.
	Events map[string][]string
}

// PriceLine is one commodity quote for the market section.
type PriceLine struct {
	Commodity string
	Price     float64
	Base      float64
	Trend     string
}

// Almanac holds a generated issue.
type Almanac struct {
	GeneratedAt time.Time `json:"generated_at"`
	SimTime     string    `json:"sim_time"`
	Content     string    `json:"content"`
	Narrated    bool      `json:"narrated"`
}

const almanacSystem = `You are the writer of "The Farmstead Almanac", a short weekly bulletin read by the owner of a mixed arable and livestock farm. Summarise the weather, the state of the fields, the herd and the machinery shed, the market and the farm's books in plain, warm prose. Mention anything that needs the farmer's attention. Keep it under 300 words and never mention that the farm is simulated.`

// GenerateAlmanac writes an issue from data. Without a working client the
// issue is a plain-text digest.
func GenerateAlmanac(ctx context.Context, client *Client, data *AlmanacData) *Almanac {
	issue := &Almanac{GeneratedAt: time.Now(), SimTime: data.SimTime}
	if client.Enabled() {
		content, err := client.Complete(ctx, almanacSystem, buildAlmanacPrompt(data), 600)
		if err == nil {
			issue.Content = content
			issue.Narrated = true
			return issue
		}
		slog.Warn("almanac narration failed, using digest", "error", err)
	}
	issue.Content = fallbackAlmanac(data)
	return issue
}

func priceDirection(p PriceLine) string {
	if p.Base <= 0 {
		return p.Trend
	}
	switch ratio := p.Price / p.Base; {
	case ratio > 1.3:
		return "surging"
	case ratio > 1.1:
		return "firm"
	case ratio < 0.7:
		return "collapsed"
	case ratio < 0.9:
		return "soft"
	}
	return "steady"
}

func eventCategories(events map[string][]string) []string {
	cats := make([]string, 0, len(events))
	for c, list := range events {
		if len(list) > 0 {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

func buildAlmanacPrompt(data *AlmanacData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write this week's almanac.\n\n")
	fmt.Fprintf(&b, "DATE: %s (%s)\n", data.SimTime, data.Season)
	fmt.Fprintf(&b, "WEATHER: %s, %.1f°C\n", data.Weather, data.Temperature)
	fmt.Fprintf(&b, "FARM: %d planted plots, %d animals, %d machines\n", data.Plots, data.Animals, data.Machines)
	fmt.Fprintf(&b, "BOOKS: cash $%s, net profit $%s, debt $%s, credit score %.2f\n\n",
		humanize.CommafWithDigits(data.Cash, 2),
		humanize.CommafWithDigits(data.NetProfit, 2),
		humanize.CommafWithDigits(data.Debt, 2),
		data.CreditScore)

	if len(data.Prices) > 0 {
		b.WriteString("MARKET:\n")
		for _, p := range data.Prices {
			fmt.Fprintf(&b, "- %s: $%.2f (%s, %s)\n", p.Commodity, p.Price, priceDirection(p), p.Trend)
		}
		b.WriteString("\n")
	}

	for _, cat := range eventCategories(data.Events) {
		fmt.Fprintf(&b, "%s NEWS:\n", strings.ToUpper(cat))
		for i, e := range data.Events[cat] {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func fallbackAlmanac(data *AlmanacData) string {
	var b strings.Builder

	b.WriteString("THE FARMSTEAD ALMANAC\n")
	b.WriteString("=====================\n")
	fmt.Fprintf(&b, "%s, %s\n\n", data.SimTime, data.Season)

	fmt.Fprintf(&b, "WEATHER\n%s at %.1f°C.\n\n", data.Weather, data.Temperature)

	b.WriteString("THE FARM\n")
	fmt.Fprintf(&b, "%d plots planted, %d animals in the herd, %d machines in the shed.\n\n",
		data.Plots, data.Animals, data.Machines)

	b.WriteString("THE BOOKS\n")
	fmt.Fprintf(&b, "Cash on hand: $%s. Net profit to date: $%s.\n",
		humanize.CommafWithDigits(data.Cash, 2), humanize.CommafWithDigits(data.NetProfit, 2))
	if data.Debt > 0 {
		fmt.Fprintf(&b, "Outstanding debt: $%s.\n", humanize.CommafWithDigits(data.Debt, 2))
	}
	fmt.Fprintf(&b, "Credit score: %.2f.\n\n", data.CreditScore)

	if len(data.Prices) > 0 {
		b.WriteString("MARKET REPORT\n")
		for _, p := range data.Prices {
			fmt.Fprintf(&b, "- %s: $%.2f (%s)\n", p.Commodity, p.Price, priceDirection(p))
		}
		b.WriteString("\n")
	}

	for _, cat := range eventCategories(data.Events) {
		list := data.Events[cat]
		fmt.Fprintf(&b, "%s\n", strings.ToUpper(cat))
		for i, e := range list {
			if i >= 5 {
				fmt.Fprintf(&b, "...and %d more.\n", len(list)-5)
				break
			}
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	return b.String()
}
