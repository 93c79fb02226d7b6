package receiver

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/trigger"
)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type field struct {
	label string
	value string
}

// slackEscaper escapes the control characters of Slack mrkdwn, so payload
// text can neither mention users nor form links.
var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// message renders a header section, a field section and a context line
// holding the deep link. Empty field values are dropped. Title, field values
// and link text are escaped; labels, emoji and linkURL are trusted.
func message(title, emoji string, fields []field, linkText, linkURL string) slackMessage {
	title = slackEscaper.Replace(title)
	header := title
	if emoji != "" {
		header += " " + emoji
	}
	msg := slackMessage{
		Text: title,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: header}},
		},
	}

	var rendered []slackText
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		rendered = append(rendered, slackText{Type: "mrkdwn", Text: "*" + f.label + "*\n" + slackEscaper.Replace(f.value)})
	}
	if len(rendered) > 0 {
		msg.Blocks = append(msg.Blocks, slackBlock{Type: "section", Fields: rendered})
	}

	if linkURL != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "<" + linkURL + "|" + slackEscaper.Replace(linkText) + ">"}},
		})
	}
	return msg
}

type chatTemplate func(t *Transformer, env *envelope.Envelope) (slackMessage, error)

var chatTemplates = map[trigger.Trigger]chatTemplate{
	trigger.LinkCreated:                 linkTemplate("New short link created", ":link:"),
	trigger.LinkUpdated:                 linkTemplate("Short link updated", ":pencil2:"),
	trigger.LinkDeleted:                 linkTemplate("Short link deleted", ":wastebasket:"),
	trigger.LinkClicked:                 clickTemplate,
	trigger.LeadCreated:                 leadTemplate,
	trigger.SaleCreated:                 saleTemplate,
	trigger.PartnerEnrolled:             partnerTemplate,
	trigger.PartnerApplicationSubmitted: applicationTemplate,
	trigger.CommissionCreated:           commissionTemplate,
	trigger.BountyCreated:               bountyTemplate("New bounty created"),
	trigger.BountyUpdated:               bountyTemplate("Bounty updated"),
	trigger.PayoutConfirmed:             payoutTemplate,
}

func init() {
	for _, t := range trigger.All() {
		if _, ok := chatTemplates[t]; !ok {
			panic(fmt.Sprintf("receiver: %s: %s", ErrNoTemplate, t))
		}
	}
}

func (t *Transformer) chat(env *envelope.Envelope) ([]byte, error) {
	tmpl, ok := chatTemplates[env.Event()]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoTemplate, env.Event())
	}
	msg, err := tmpl(t, env)
	if err != nil {
		return nil, fmt.Errorf("receiver: chat %s: %w", env.Event(), err)
	}
	return json.Marshal(msg)
}

func (t *Transformer) link(path string, query url.Values) string {
	if t.appURL == "" {
		return ""
	}
	u := t.appURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func linkTemplate(title, emoji string) chatTemplate {
	return func(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
		var l payload.Link
		if err := env.DecodeData(&l); err != nil {
			return slackMessage{}, err
		}
		return message(title, emoji, []field{
			{"Short link", l.ShortLink},
			{"Destination URL", l.URL},
		}, "View link", t.link("/links/"+url.PathEscape(l.Domain)+"/"+url.PathEscape(l.Key), nil)), nil
	}
}

func clickTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var e payload.ClickEvent
	if err := env.DecodeData(&e); err != nil {
		return slackMessage{}, err
	}
	return message("New click on "+e.Link.ShortLink, ":eyes:", []field{
		{"Country", e.Click.Country},
		{"Referrer", e.Click.Referer},
		{"Device", e.Click.Device},
	}, "View analytics", t.link("/analytics", url.Values{
		"domain": {e.Link.Domain},
		"key":    {e.Link.Key},
	})), nil
}

func customerLabel(c payload.Customer) string {
	if c.Email != nil && *c.Email != "" {
		return c.Name + " (" + *c.Email + ")"
	}
	return c.Name
}

func leadTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var e payload.LeadEvent
	if err := env.DecodeData(&e); err != nil {
		return slackMessage{}, err
	}
	return message("New lead created", ":tada:", []field{
		{"Customer", customerLabel(e.Customer)},
		{"Event", e.EventName},
		{"Short link", e.Link.ShortLink},
	}, "View customer", t.link("/customers/"+url.PathEscape(e.Customer.ID), nil)), nil
}

func saleTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var e payload.SaleEvent
	if err := env.DecodeData(&e); err != nil {
		return slackMessage{}, err
	}
	kind := "New"
	if e.IsRecurring() {
		kind = "Recurring"
	}
	return message("New sale created", ":moneybag:", []field{
		{"Customer", customerLabel(e.Customer)},
		{"Amount", formatAmount(e.Sale.Amount, e.Sale.Currency)},
		{"Type", kind},
		{"Short link", e.Link.ShortLink},
	}, "View customer", t.link("/customers/"+url.PathEscape(e.Customer.ID), nil)), nil
}

func partnerFields(p payload.Partner) []field {
	name := p.Name
	if p.Email != nil && *p.Email != "" {
		name += " (" + *p.Email + ")"
	}
	return []field{
		{"Partner", name},
		{"Country", deref(p.Country)},
		{"Company", deref(p.CompanyName)},
	}
}

func partnerTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var p payload.Partner
	if err := env.DecodeData(&p); err != nil {
		return slackMessage{}, err
	}
	return message("New partner enrolled", ":handshake:", partnerFields(p),
		"View partner", t.link("/program/partners", url.Values{"partnerId": {p.ID}})), nil
}

func applicationTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var a payload.Application
	if err := env.DecodeData(&a); err != nil {
		return slackMessage{}, err
	}
	return message("New partner application submitted", ":memo:", partnerFields(a.Partner),
		"Review application", t.link("/program/partners/applications", url.Values{"partnerId": {a.Partner.ID}})), nil
}

func commissionTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var c payload.Commission
	if err := env.DecodeData(&c); err != nil {
		return slackMessage{}, err
	}
	var customer string
	if c.Customer != nil {
		customer = customerLabel(*c.Customer)
	}
	return message("New commission created", ":money_with_wings:", []field{
		{"Partner", c.Partner.Name},
		{"Customer", customer},
		{"Amount", formatAmount(c.Amount, c.Currency)},
		{"Earnings", formatAmount(c.Earnings, c.Currency)},
	}, "View commissions", t.link("/program/commissions", url.Values{"partnerId": {c.Partner.ID}})), nil
}

func bountyTemplate(title string) chatTemplate {
	return func(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
		var b payload.Bounty
		if err := env.DecodeData(&b); err != nil {
			return slackMessage{}, err
		}
		period := dateOnly(b.StartsAt)
		if b.EndsAt != nil {
			period += " to " + dateOnly(*b.EndsAt)
		} else {
			period += " onwards"
		}
		return message(title, ":trophy:", []field{
			{"Name", b.Name},
			{"Reward", formatAmount(b.RewardAmount, "usd")},
			{"Type", b.Type},
			{"Period", period},
		}, "View bounty", t.link("/program/bounties/"+url.PathEscape(b.ID), nil)), nil
	}
}

func payoutTemplate(t *Transformer, env *envelope.Envelope) (slackMessage, error) {
	var p payload.Payout
	if err := env.DecodeData(&p); err != nil {
		return slackMessage{}, err
	}
	return message("Payout confirmed", ":white_check_mark:", []field{
		{"Partner", p.Partner.Name},
		{"Amount", formatAmount(p.Amount, p.Currency)},
		{"Invoice", deref(p.InvoiceID)},
	}, "View payout", t.link("/program/payouts", url.Values{"payoutId": {p.ID}})), nil
}

// formatAmount renders minor units, e.g. 9900 "usd" as "99.00 USD".
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}

func dateOnly(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
