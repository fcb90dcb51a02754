package models

import (
	"time"

	"refiling/pkg/domain"
)

// TransactionRecord is the read-only input produced by the wizard side of the
// application. The filing subsystem never mutates it except to copy terminal
// outcome fields back through the TransactionSource collaborator.
type TransactionRecord struct {
	ID                 domain.TransactionID
	PropertyAddress    Address
	ClosingDate        time.Time
	PurchasePriceCents int64
	Parties            []PartyRecord
	Payments           []Payment

	// Terminal outcome fields, written back after final acceptance.
	ConfirmationID string
	FiledAt        *time.Time
}

// Payment is one financial-account entry. Each payment carries exactly one
// holding institution, which becomes a dedicated party in the batch document.
type Payment struct {
	AmountCents   int64
	AccountNumber string
	Institution   Institution
}

// Institution is the financial institution holding a payment account.
type Institution struct {
	Name    string
	TaxID   string
	Country string
	Address Address
}

// Address is a postal address shared by parties and properties.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Buyers returns the transferee parties in record order.
func (t *TransactionRecord) Buyers() []PartyRecord {
	return t.partiesByRole(RoleBuyer)
}

// Sellers returns the transferor parties in record order.
func (t *TransactionRecord) Sellers() []PartyRecord {
	return t.partiesByRole(RoleSeller)
}

func (t *TransactionRecord) partiesByRole(role PartyRole) []PartyRecord {
	var out []PartyRecord
	for _, p := range t.Parties {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}
