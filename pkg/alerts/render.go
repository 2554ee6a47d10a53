package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/zsolti91h/fare-watch/pkg/model"
)

const dealsHTML = `<h3>{{.Subject}}</h3>
{{range $i, $d := .Deals}}{{if $i}}<hr/>
{{end}}<p>&#9992;&#65039; <b>{{$d.Origin}}</b> &rarr; <b>{{$d.Destination}}</b><br>
<b>Date:</b> {{$d.DepartureDate}}{{if $d.ReturnDate}} &ndash; {{$d.ReturnDate}}{{end}}<br>
<b>Price:</b> {{$d.Price.StringFixed 2}} {{currency $d.Currency}}</p>
{{end}}`

var htmlTmpl = template.Must(template.New("deals").
	Funcs(template.FuncMap{"currency": currencySymbol}).
	Parse(dealsHTML))

// Subject returns the batch subject line for a trip type.
func Subject(trip model.TripType) string {
	if trip.RoundTrip() {
		return "New round-trip fare(s) under your cap"
	}
	return "New one-way fare(s) under your cap"
}

// Render builds the subject and both bodies for a batch of deals.
func Render(runID string, trip model.TripType, deals []Deal) (Message, error) {
	msg := Message{
		RunID:   runID,
		Trip:    trip,
		Subject: Subject(trip),
		Deals:   deals,
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, msg); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	msg.HTML = buf.String()
	msg.Text = renderText(msg)
	return msg, nil
}

func renderText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Subject)
	b.WriteString("\n")
	for _, d := range msg.Deals {
		b.WriteString("\n")
		b.WriteString(DealLine(d))
		b.WriteString("\n")
	}
	return b.String()
}

// DealLine is the one-line summary of a deal.
func DealLine(d Deal) string {
	dates := d.DepartureDate
	if d.ReturnDate != "" {
		dates += " - " + d.ReturnDate
	}
	return fmt.Sprintf("%s -> %s  %s  %s %s", d.Origin, d.Destination, dates, d.Price.StringFixed(2), d.Currency)
}

func currencySymbol(code string) string {
	switch code {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	default:
		return code
	}
}
