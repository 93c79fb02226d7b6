package catalog

import "github.com/xraph/beacon/trigger"

// Schema fragments shared between triggers. Documents are built fresh on
// each call so callers may not alias each other's maps.

func str() map[string]any     { return map[string]any{"type": "string"} }
func nullStr() map[string]any { return map[string]any{"type": []any{"string", "null"}} }
func boolean() map[string]any { return map[string]any{"type": "boolean"} }
func integer() map[string]any { return map[string]any{"type": "integer"} }
func amount() map[string]any  { return map[string]any{"type": "integer", "minimum": 0} }
func timestamp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`}
}

func nullTimestamp() map[string]any {
	return map[string]any{"anyOf": []any{timestamp(), map[string]any{"type": "null"}}}
}

func object(required []string, props map[string]any) map[string]any {
	req := make([]any, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]any{
		"type":       "object",
		"required":   req,
		"properties": props,
	}
}

func nullable(schema map[string]any) map[string]any {
	return map[string]any{"anyOf": []any{schema, map[string]any{"type": "null"}}}
}

func linkSchema() map[string]any {
	return object(
		[]string{"id", "domain", "key", "shortLink", "url", "workspaceId", "createdAt"},
		map[string]any{
			"id":           str(),
			"domain":       str(),
			"key":          str(),
			"shortLink":    str(),
			"url":          str(),
			"archived":     boolean(),
			"expiresAt":    nullTimestamp(),
			"title":        nullStr(),
			"description":  nullStr(),
			"externalId":   nullStr(),
			"tenantId":     nullStr(),
			"programId":    nullStr(),
			"partnerId":    nullStr(),
			"tagIds":       map[string]any{"type": []any{"array", "null"}, "items": str()},
			"utm_source":   nullStr(),
			"utm_medium":   nullStr(),
			"utm_campaign": nullStr(),
			"utm_term":     nullStr(),
			"utm_content":  nullStr(),
			"workspaceId":  str(),
			"clicks":       integer(),
			"leads":        integer(),
			"sales":        integer(),
			"saleAmount":   integer(),
			"createdAt":    timestamp(),
			"updatedAt":    timestamp(),
		},
	)
}

func clickSchema() map[string]any {
	return object(
		[]string{"id", "timestamp", "url", "qr", "bot"},
		map[string]any{
			"id":         str(),
			"timestamp":  timestamp(),
			"url":        str(),
			"country":    str(),
			"city":       str(),
			"region":     str(),
			"continent":  str(),
			"device":     str(),
			"browser":    str(),
			"os":         str(),
			"referer":    str(),
			"refererUrl": str(),
			"ip":         str(),
			"qr":         boolean(),
			"bot":        boolean(),
		},
	)
}

func customerSchema() map[string]any {
	return object(
		[]string{"id", "externalId", "name", "createdAt"},
		map[string]any{
			"id":         str(),
			"externalId": str(),
			"name":       str(),
			"email":      nullStr(),
			"avatar":     nullStr(),
			"country":    nullStr(),
			"sales":      integer(),
			"createdAt":  timestamp(),
		},
	)
}

func partnerRefSchema() map[string]any {
	return object(
		[]string{"id", "name"},
		map[string]any{
			"id":      str(),
			"name":    str(),
			"email":   nullStr(),
			"image":   nullStr(),
			"country": nullStr(),
		},
	)
}

func partnerSchema() map[string]any {
	return object(
		[]string{"id", "name", "status", "programId", "createdAt"},
		map[string]any{
			"id":          str(),
			"name":        str(),
			"companyName": nullStr(),
			"email":       nullStr(),
			"image":       nullStr(),
			"country":     nullStr(),
			"description": nullStr(),
			"status":      str(),
			"programId":   str(),
			"tenantId":    nullStr(),
			"links":       map[string]any{"type": []any{"array", "null"}, "items": linkSchema()},
			"createdAt":   timestamp(),
		},
	)
}

func leadProps() map[string]any {
	return map[string]any{
		"eventName":   str(),
		"customer":    customerSchema(),
		"click":       clickSchema(),
		"link":        linkSchema(),
		"partner":     partnerRefSchema(),
		"click_id":    map[string]any{"type": "string", "deprecated": true},
		"link_id":     map[string]any{"type": "string", "deprecated": true},
		"customer_id": map[string]any{"type": "string", "deprecated": true},
	}
}

func saleSchema() map[string]any {
	props := leadProps()
	props["sale"] = object(
		[]string{"amount", "currency", "paymentProcessor"},
		map[string]any{
			"amount":           amount(),
			"currency":         str(),
			"paymentProcessor": str(),
			"invoiceId":        nullStr(),
			"metadata":         map[string]any{"type": []any{"object", "null"}},
		},
	)
	props["invoice_id"] = map[string]any{"type": []any{"string", "null"}, "deprecated": true}
	return object(
		[]string{"eventName", "customer", "click", "link", "sale", "click_id", "link_id", "customer_id"},
		props,
	)
}

func schemaFor(t trigger.Trigger) map[string]any {
	switch t {
	case trigger.LinkCreated, trigger.LinkUpdated, trigger.LinkDeleted:
		return linkSchema()
	case trigger.LinkClicked:
		return object([]string{"click", "link"}, map[string]any{
			"click": clickSchema(),
			"link":  linkSchema(),
		})
	case trigger.LeadCreated:
		return object(
			[]string{"eventName", "customer", "click", "link", "click_id", "link_id", "customer_id"},
			leadProps(),
		)
	case trigger.SaleCreated:
		return saleSchema()
	case trigger.PartnerEnrolled:
		return partnerSchema()
	case trigger.PartnerApplicationSubmitted:
		return object([]string{"id", "createdAt", "partner"}, map[string]any{
			"id":        str(),
			"createdAt": timestamp(),
			"partner":   partnerSchema(),
			"applicationFormData": map[string]any{
				"type": []any{"array", "null"},
				"items": object([]string{"label"}, map[string]any{
					"label": str(),
					"value": nullStr(),
				}),
			},
		})
	case trigger.CommissionCreated:
		return object(
			[]string{"id", "type", "amount", "earnings", "currency", "status", "partner", "createdAt"},
			map[string]any{
				"id":          str(),
				"type":        map[string]any{"enum": []any{"click", "lead", "sale", "referral", "custom"}},
				"amount":      amount(),
				"earnings":    amount(),
				"currency":    str(),
				"status":      str(),
				"invoiceId":   nullStr(),
				"description": nullStr(),
				"quantity":    integer(),
				"partner":     partnerRefSchema(),
				"customer":    nullable(customerSchema()),
				"createdAt":   timestamp(),
				"updatedAt":   timestamp(),
			},
		)
	case trigger.BountyCreated, trigger.BountyUpdated:
		return object([]string{"id", "name", "type", "startsAt", "rewardAmount"}, map[string]any{
			"id":                str(),
			"name":              str(),
			"description":       nullStr(),
			"type":              map[string]any{"enum": []any{"performance", "submission"}},
			"startsAt":          timestamp(),
			"endsAt":            nullTimestamp(),
			"rewardAmount":      amount(),
			"rewardDescription": nullStr(),
		})
	case trigger.PayoutConfirmed:
		return object([]string{"id", "amount", "currency", "status", "mode", "partner", "createdAt"}, map[string]any{
			"id":          str(),
			"invoiceId":   nullStr(),
			"amount":      amount(),
			"currency":    str(),
			"status":      str(),
			"mode":        map[string]any{"enum": []any{"internal", "external"}},
			"description": nullStr(),
			"periodStart": nullTimestamp(),
			"periodEnd":   nullTimestamp(),
			"partner":     partnerRefSchema(),
			"createdAt":   timestamp(),
			"paidAt":      nullTimestamp(),
		})
	}
	return nil
}
