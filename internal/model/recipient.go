package model

import (
	"strings"
	"time"
)

type Recipient struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	City        string `json:"city,omitempty"`
	Address     string `json:"address,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Fields returns the values a message template may reference. Both the
// Portuguese keys used by the stock templates and English aliases are set.
func (r Recipient) Fields() map[string]string {
	name := strings.TrimSpace(r.Name)
	return map[string]string{
		"nome":         name,
		"name":         name,
		"cidade":       r.City,
		"city":         r.City,
		"endereco":     r.Address,
		"address":      r.Address,
		"tipo_servico": r.ServiceType,
		"tipo":         r.ServiceType,
		"service_type": r.ServiceType,
		"telefone":     r.Phone,
		"phone":        r.Phone,
	}
}

// LeadHistory is an audit row written whenever a recipient's status changes.
type LeadHistory struct {
	RecipientID int64     `json:"recipient_id"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	At          time.Time `json:"at"`
}
