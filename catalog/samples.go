package catalog

import (
	"fmt"

	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/trigger"
)

func ptr[T any](v T) *T { return &v }

func sampleLink() payload.Link {
	return payload.Link{
		ID:          "link_1JPDDWA2Y3PFVDCG8AQNGRK6M",
		Domain:      "acme.link",
		Key:         "spring",
		ShortLink:   "https://acme.link/spring",
		URL:         "https://acme.com/pricing",
		Title:       ptr("Acme pricing"),
		UTMSource:   ptr("newsletter"),
		UTMMedium:   ptr("email"),
		UTMCampaign: ptr("spring-launch"),
		WorkspaceID: "ws_1JPDDW8K8S8KQX3Y1F7F3Q3R0",
		Clicks:      128,
		Leads:       12,
		Sales:       3,
		SaleAmount:  29700,
		CreatedAt:   "2025-03-01T09:00:00.000Z",
		UpdatedAt:   "2025-03-02T10:30:00.000Z",
	}
}

func sampleClick() payload.Click {
	return payload.Click{
		ID:         "d0UtZGVmLTQ4NjYtYjI5Zi0wMTU0YTA",
		Timestamp:  "2025-03-03T14:12:09.512Z",
		URL:        "https://acme.com/pricing",
		Country:    "US",
		City:       "San Francisco",
		Region:     "US-CA",
		Continent:  "NA",
		Device:     "Desktop",
		Browser:    "Chrome",
		OS:         "Mac OS",
		Referer:    "news.ycombinator.com",
		RefererURL: "https://news.ycombinator.com/",
		IP:         "203.0.113.7",
	}
}

func sampleCustomer(sales *int64) payload.Customer {
	return payload.Customer{
		ID:         "cus_1JPDE1YH4Q6GTNW0J3YFXZ9F4",
		ExternalID: "user_4821",
		Name:       "Ada Lovelace",
		Email:      ptr("ada@example.com"),
		Country:    ptr("GB"),
		Sales:      sales,
		CreatedAt:  "2025-03-03T14:15:00.000Z",
	}
}

func samplePartnerRef() payload.PartnerRef {
	return payload.PartnerRef{
		ID:      "pn_1JPDE4T9V5M5Q8Y0S8B0W3K2C",
		Name:    "Grace Hopper",
		Email:   ptr("grace@example.com"),
		Country: ptr("US"),
	}
}

func samplePartner() payload.Partner {
	ref := samplePartnerRef()
	return payload.Partner{
		ID:          ref.ID,
		Name:        ref.Name,
		CompanyName: ptr("Hopper Media"),
		Email:       ref.Email,
		Country:     ref.Country,
		Status:      "approved",
		ProgramID:   "prog_1JPDE6P7W0R4N9C2H5D8F1G3J",
		Links:       []payload.Link{sampleLink()},
		CreatedAt:   "2025-02-20T08:00:00.000Z",
	}
}

// Sample returns the static example payload for t. Samples already have
// the public shape produced by the envelope builder.
func Sample(t trigger.Trigger) (any, error) {
	switch t {
	case trigger.LinkCreated, trigger.LinkUpdated, trigger.LinkDeleted:
		return sampleLink(), nil
	case trigger.LinkClicked:
		return payload.ClickEvent{Click: sampleClick(), Link: sampleLink()}, nil
	case trigger.LeadCreated:
		e := payload.LeadEvent{
			EventName: "Sign up",
			Customer:  sampleCustomer(nil),
			Click:     sampleClick(),
			Link:      sampleLink(),
		}
		e.Normalize()
		return e, nil
	case trigger.SaleCreated:
		e := payload.SaleEvent{
			EventName: "Invoice paid",
			Customer:  sampleCustomer(ptr(int64(1))),
			Click:     sampleClick(),
			Link:      sampleLink(),
			Sale: payload.Sale{
				Amount:           9900,
				Currency:         "usd",
				PaymentProcessor: "stripe",
				InvoiceID:        ptr("in_1OqZ2xAbCdEf"),
			},
		}
		e.Normalize()
		return e, nil
	case trigger.PartnerEnrolled:
		return samplePartner(), nil
	case trigger.PartnerApplicationSubmitted:
		return payload.Application{
			ID:        "pga_1JPDE8X2Z6B1V4M7Q0T3Y5N8R",
			CreatedAt: "2025-02-19T16:45:00.000Z",
			Partner:   samplePartner(),
			FormData: []payload.FormDataEntry{
				{Label: "How will you promote us?", Value: ptr("Weekly newsletter")},
			},
		}, nil
	case trigger.CommissionCreated:
		cus := sampleCustomer(nil)
		return payload.Commission{
			ID:        "cm_1JPDEA5C8F2H6K9M3P7S0V4X1",
			Type:      "sale",
			Amount:    9900,
			Earnings:  1980,
			Currency:  "usd",
			Status:    "pending",
			Quantity:  1,
			Partner:   samplePartnerRef(),
			Customer:  &cus,
			CreatedAt: "2025-03-03T14:20:00.000Z",
			UpdatedAt: "2025-03-03T14:20:00.000Z",
		}, nil
	case trigger.BountyCreated, trigger.BountyUpdated:
		return payload.Bounty{
			ID:           "bnty_1JPDEC7E0G4J8L2N6Q9T3W5Z0",
			Name:         "First 10 sales",
			Description:  ptr("Earn a bonus after your first 10 referred sales."),
			Type:         "performance",
			StartsAt:     "2025-03-01T00:00:00.000Z",
			EndsAt:       ptr("2025-06-01T00:00:00.000Z"),
			RewardAmount: 50000,
		}, nil
	case trigger.PayoutConfirmed:
		return payload.Payout{
			ID:          "po_1JPDEE9G2J6M0P4S8V1Y3B7D2",
			InvoiceID:   ptr("inv_1JPDEG1J4L8N2R6U0X3A5D9F4"),
			Amount:      19800,
			Currency:    "usd",
			Status:      "processing",
			Mode:        "external",
			PeriodStart: ptr("2025-02-01T00:00:00.000Z"),
			PeriodEnd:   ptr("2025-02-28T23:59:59.999Z"),
			Partner:     samplePartnerRef(),
			CreatedAt:   "2025-03-01T00:00:00.000Z",
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, t)
}
