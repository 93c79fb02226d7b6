package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/trigger"
)

// shape converts raw into the public data shape of t. Lead and sale data
// always leave here with their deprecated top-level fields in sync.
func shape(t trigger.Trigger, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("no data for %s", t)
	case []byte:
		return shapeJSON(t, v)
	case json.RawMessage:
		return shapeJSON(t, v)
	case payload.LeadRecord:
		return leadFromRecord(t, &v)
	case *payload.LeadRecord:
		return leadFromRecord(t, v)
	case payload.SaleRecord:
		return saleFromRecord(t, &v)
	case *payload.SaleRecord:
		return saleFromRecord(t, v)
	case payload.LeadEvent:
		return normalizeLead(t, v)
	case *payload.LeadEvent:
		return normalizeLead(t, *v)
	case payload.SaleEvent:
		return normalizeSale(t, v)
	case *payload.SaleEvent:
		return normalizeSale(t, *v)
	}
	return raw, nil
}

func shapeJSON(t trigger.Trigger, raw []byte) (any, error) {
	switch t {
	case trigger.LeadCreated:
		var e payload.LeadEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode lead: %w", err)
		}
		return normalizeLead(t, e)
	case trigger.SaleCreated:
		var e payload.SaleEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode sale: %w", err)
		}
		return normalizeSale(t, e)
	}
	return json.RawMessage(raw), nil
}

func normalizeLead(t trigger.Trigger, e payload.LeadEvent) (any, error) {
	if t != trigger.LeadCreated {
		return nil, fmt.Errorf("lead data cannot be sent as %s", t)
	}
	e.Normalize()
	return e, nil
}

func normalizeSale(t trigger.Trigger, e payload.SaleEvent) (any, error) {
	if t != trigger.SaleCreated {
		return nil, fmt.Errorf("sale data cannot be sent as %s", t)
	}
	e.Normalize()
	return e, nil
}

func leadFromRecord(t trigger.Trigger, r *payload.LeadRecord) (any, error) {
	if t != trigger.LeadCreated {
		return nil, fmt.Errorf("lead record cannot be sent as %s", t)
	}
	e, err := leadEvent(r)
	if err != nil {
		return nil, err
	}
	e.Normalize()
	return e, nil
}

func saleFromRecord(t trigger.Trigger, r *payload.SaleRecord) (any, error) {
	if t != trigger.SaleCreated {
		return nil, fmt.Errorf("sale record cannot be sent as %s", t)
	}
	lead, err := leadEvent(&r.LeadRecord)
	if err != nil {
		return nil, err
	}
	e := payload.SaleEvent{
		EventName: lead.EventName,
		Customer:  lead.Customer,
		Click:     lead.Click,
		Link:      lead.Link,
		Partner:   lead.Partner,
		Sale: payload.Sale{
			Amount:           r.Amount,
			Currency:         r.Currency,
			PaymentProcessor: r.PaymentProcessor,
			InvoiceID:        r.InvoiceID,
			Metadata:         r.Metadata,
		},
	}
	e.Normalize()
	return e, nil
}

func leadEvent(r *payload.LeadRecord) (payload.LeadEvent, error) {
	click, err := clickFromRecord(r.Click)
	if err != nil {
		return payload.LeadEvent{}, err
	}
	link, err := normalizeLink(r.Link)
	if err != nil {
		return payload.LeadEvent{}, err
	}
	return payload.LeadEvent{
		EventName: r.EventName,
		Customer: payload.Customer{
			ID:         r.Customer.ID,
			ExternalID: r.Customer.ExternalID,
			Name:       r.Customer.Name,
			Email:      r.Customer.Email,
			Avatar:     r.Customer.Avatar,
			Country:    r.Customer.Country,
			Sales:      r.Customer.Sales,
			CreatedAt:  payload.FormatTime(r.Customer.CreatedAt),
		},
		Click:   click,
		Link:    link,
		Partner: r.Partner,
	}, nil
}

func clickFromRecord(r payload.ClickRecord) (payload.Click, error) {
	ts, err := payload.NormalizeTimestamp(r.Timestamp)
	if err != nil {
		return payload.Click{}, err
	}
	return payload.Click{
		ID:         r.ClickID,
		Timestamp:  ts,
		URL:        r.URL,
		Country:    r.Country,
		City:       r.City,
		Region:     r.Region,
		Continent:  r.Continent,
		Device:     r.Device,
		Browser:    r.Browser,
		OS:         r.OS,
		Referer:    r.Referer,
		RefererURL: r.RefererURL,
		IP:         r.IP,
		QR:         r.QR != 0,
		Bot:        r.Bot != 0,
	}, nil
}

func normalizeLink(l payload.Link) (payload.Link, error) {
	var err error
	if l.CreatedAt, err = payload.NormalizeTimestamp(l.CreatedAt); err != nil {
		return l, err
	}
	if l.UpdatedAt, err = payload.NormalizeTimestamp(l.UpdatedAt); err != nil {
		return l, err
	}
	if l.ExpiresAt != nil {
		exp, expErr := payload.NormalizeTimestamp(*l.ExpiresAt)
		if expErr != nil {
			return l, expErr
		}
		l.ExpiresAt = &exp
	}
	return l, nil
}

func compact(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
