// Package content renders SMS bodies, email subjects and email HTML for
// the follow-up templates.
package content

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/LeventeLantos/openhouse-followup/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = map[model.Template]string{
	model.TemplateWelcome:           "templates/welcome.html",
	model.TemplateFollowUp1h:        "templates/followup.html",
	model.TemplateFollowUp24h:       "templates/followup.html",
	model.TemplateSimilarProperties: "templates/similar_properties.html",
	model.TemplateMarketUpdate:      "templates/market_update.html",
}

type Email struct {
	Subject string
	HTML    string
}

// EmailData is the bundle an email template is rendered from.
type EmailData struct {
	Subject         string
	LeadName        string
	PropertyAddress string
	PropertyPhotos  []string
	PropertyLink    string
	Price           string
	Bedrooms        int
	Bathrooms       string
	SquareFeet      string
	AgentName       string
	AgentPhoto      string
	AgentBrokerage  string
	AgentEmail      string
	AgentPhone      string
	FollowUpNumber  int
	Paragraphs      []string
}

type Generator struct {
	baseURL   string
	pages     map[model.Template]*template.Template
	broadcast *template.Template
	printer   *message.Printer
}

func NewGenerator(baseURL string) (*Generator, error) {
	base, err := template.New("layout.html").Funcs(template.FuncMap{
		"first": firstN,
		"inc":   func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[model.Template]*template.Template, len(pageFiles))
	for tpl, file := range pageFiles {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", tpl, err)
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[tpl] = t
	}

	broadcast, err := base.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone layout for broadcast: %w", err)
	}
	if _, err := broadcast.ParseFS(templateFS, "templates/broadcast.html"); err != nil {
		return nil, fmt.Errorf("parse broadcast: %w", err)
	}

	return &Generator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		pages:     pages,
		broadcast: broadcast,
		printer:   message.NewPrinter(language.AmericanEnglish),
	}, nil
}

func (g *Generator) PropertyLink(event model.Event) string {
	return g.baseURL + "/" + event.ShortCode
}

func (g *Generator) SMS(tpl model.Template, lead model.Lead, event model.Event) (string, error) {
	name := lead.FirstName
	agent := event.AgentName
	address := event.PropertyAddress

	switch tpl {
	case model.TemplateWelcome:
		return fmt.Sprintf("Hi %s! Thanks for visiting %s today. Here's the full property info: %s - %s",
			name, address, g.PropertyLink(event), agent), nil
	case model.TemplateFollowUp1h:
		return fmt.Sprintf("Hi %s, just checking in! Any questions about %s? I'm here to help. - %s",
			name, address, agent), nil
	case model.TemplateFollowUp24h:
		return fmt.Sprintf("%s, still thinking about %s? Happy to schedule another showing or answer questions. - %s",
			name, address, agent), nil
	case model.TemplateSimilarProperties:
		return fmt.Sprintf("Hi %s! Found some great homes similar to %s. Want to see them? Text back or call me! - %s",
			name, address, agent), nil
	case model.TemplateMarketUpdate:
		return fmt.Sprintf("%s, here's your local market update! Inventory is moving fast. Let's discuss your home search. - %s",
			name, agent), nil
	}
	return "", &model.UnknownTemplateError{Template: string(tpl)}
}

func Subject(tpl model.Template, address string) (string, error) {
	switch tpl {
	case model.TemplateWelcome:
		return fmt.Sprintf("Thank you for visiting %s!", address), nil
	case model.TemplateFollowUp1h:
		return fmt.Sprintf("Quick follow-up about %s", address), nil
	case model.TemplateFollowUp24h:
		return fmt.Sprintf("Still thinking about %s?", address), nil
	case model.TemplateSimilarProperties:
		return "Similar properties you might love", nil
	case model.TemplateMarketUpdate:
		return "Your local market update and insights", nil
	}
	return "", &model.UnknownTemplateError{Template: string(tpl)}
}

// PlaceholderContent is stored for email records until the body is
// rendered at send time.
func PlaceholderContent(tpl model.Template) string {
	return "Email template: " + string(tpl)
}

// FollowUpNumber is 1 or 2 for the follow-up templates and 0 otherwise.
func FollowUpNumber(tpl model.Template) int {
	switch tpl {
	case model.TemplateFollowUp1h:
		return 1
	case model.TemplateFollowUp24h:
		return 2
	}
	return 0
}

func (g *Generator) EmailDataFor(tpl model.Template, lead model.Lead, event model.Event) EmailData {
	d := EmailData{
		LeadName:        lead.FirstName,
		PropertyAddress: event.PropertyAddress,
		PropertyPhotos:  event.PropertyPhotos,
		PropertyLink:    g.PropertyLink(event),
		Bedrooms:        event.Bedrooms,
		Bathrooms:       strconv.FormatFloat(event.Bathrooms, 'f', -1, 64),
		SquareFeet:      g.printer.Sprintf("%d", event.SquareFeet),
		AgentName:       event.AgentName,
		AgentPhoto:      event.AgentPhoto,
		AgentBrokerage:  event.AgentBrokerage,
		AgentEmail:      event.AgentEmail,
		AgentPhone:      event.AgentPhone,
		FollowUpNumber:  FollowUpNumber(tpl),
	}
	if event.Price > 0 {
		d.Price = g.printer.Sprintf("$%d", event.Price)
	}
	return d
}

func (g *Generator) Email(tpl model.Template, data EmailData) (Email, error) {
	page, ok := g.pages[tpl]
	if !ok {
		return Email{}, &model.UnknownTemplateError{Template: string(tpl)}
	}
	subject, err := Subject(tpl, data.PropertyAddress)
	if err != nil {
		return Email{}, err
	}

	data.Subject = subject
	data.FollowUpNumber = FollowUpNumber(tpl)

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Email{}, fmt.Errorf("render %s email: %w", tpl, err)
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

// BroadcastSubject is the subject of an ad-hoc agent update.
func BroadcastSubject(address string) string {
	return "Update about " + address
}

// BroadcastEmail wraps an agent's free-text update in the standard layout.
// Blank lines in msg separate paragraphs; the text is HTML-escaped.
func (g *Generator) BroadcastEmail(lead model.Lead, event model.Event, msg string) (Email, error) {
	data := g.EmailDataFor("", lead, event)
	data.Subject = BroadcastSubject(event.PropertyAddress)
	for _, p := range strings.Split(msg, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			data.Paragraphs = append(data.Paragraphs, p)
		}
	}

	var buf bytes.Buffer
	if err := g.broadcast.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Email{}, fmt.Errorf("render broadcast email: %w", err)
	}
	return Email{Subject: data.Subject, HTML: buf.String()}, nil
}

func firstN(n int, s []string) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
