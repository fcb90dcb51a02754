package models

import (
	"fmt"
	"time"
)

// PartyRole labels what a party does in the transaction, as recorded by the
// collection portal. The document builder maps these onto the regulator's
// fixed party taxonomy.
type PartyRole string

const (
	RoleBuyer           PartyRole = "buyer"
	RoleSeller          PartyRole = "seller"
	RoleSigningOfficer  PartyRole = "signing_officer"
	RoleBeneficialOwner PartyRole = "beneficial_owner"
)

// PartyCategory is the tagged-variant discriminator. Exactly one of the
// variant pointers on PartyRecord is set, matching the category.
type PartyCategory string

const (
	CategoryIndividual   PartyCategory = "individual"
	CategoryOrganization PartyCategory = "organization"
	CategoryTrust        PartyCategory = "trust"
)

// PartyRecord is a tagged variant over {individual, organization, trust}.
// Each variant has its own required-field set so preflight checks are
// exhaustive and statically checkable.
type PartyRecord struct {
	Role     PartyRole
	Category PartyCategory

	Individual   *IndividualParty
	Organization *OrganizationParty
	Trust        *TrustParty
}

// IndividualParty identifies a natural person.
type IndividualParty struct {
	FirstName string
	LastName  string
	BirthDate time.Time
	TaxID     string
	Phone     string
	Address   Address
}

// OrganizationParty identifies a legal entity.
type OrganizationParty struct {
	LegalName string
	TaxID     string
	Phone     string
	Address   Address
}

// TrustParty identifies a trust and its trustee.
type TrustParty struct {
	TrustName   string
	TrusteeName string
	TaxID       string
	Phone       string
	Address     Address
}

// DisplayName returns the human-facing name of the active variant.
func (p PartyRecord) DisplayName() string {
	switch p.Category {
	case CategoryIndividual:
		if p.Individual != nil {
			return p.Individual.FirstName + " " + p.Individual.LastName
		}
	case CategoryOrganization:
		if p.Organization != nil {
			return p.Organization.LegalName
		}
	case CategoryTrust:
		if p.Trust != nil {
			return p.Trust.TrustName
		}
	}
	return ""
}

// TaxID returns the identification number of the active variant.
func (p PartyRecord) TaxID() string {
	switch p.Category {
	case CategoryIndividual:
		if p.Individual != nil {
			return p.Individual.TaxID
		}
	case CategoryOrganization:
		if p.Organization != nil {
			return p.Organization.TaxID
		}
	case CategoryTrust:
		if p.Trust != nil {
			return p.Trust.TaxID
		}
	}
	return ""
}

// Phone returns the contact phone of the active variant.
func (p PartyRecord) Phone() string {
	switch p.Category {
	case CategoryIndividual:
		if p.Individual != nil {
			return p.Individual.Phone
		}
	case CategoryOrganization:
		if p.Organization != nil {
			return p.Organization.Phone
		}
	case CategoryTrust:
		if p.Trust != nil {
			return p.Trust.Phone
		}
	}
	return ""
}

// Address returns the postal address of the active variant.
func (p PartyRecord) Address() Address {
	switch p.Category {
	case CategoryIndividual:
		if p.Individual != nil {
			return p.Individual.Address
		}
	case CategoryOrganization:
		if p.Organization != nil {
			return p.Organization.Address
		}
	case CategoryTrust:
		if p.Trust != nil {
			return p.Trust.Address
		}
	}
	return Address{}
}

// Validate enforces that exactly one variant is set, that it matches the
// category tag, and that the variant's required fields are present.
func (p PartyRecord) Validate() error {
	set := 0
	if p.Individual != nil {
		set++
	}
	if p.Organization != nil {
		set++
	}
	if p.Trust != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("party must carry exactly one variant, has %d", set)
	}

	switch p.Category {
	case CategoryIndividual:
		if p.Individual == nil {
			return fmt.Errorf("category %s without matching variant", p.Category)
		}
		return p.Individual.validate()
	case CategoryOrganization:
		if p.Organization == nil {
			return fmt.Errorf("category %s without matching variant", p.Category)
		}
		return p.Organization.validate()
	case CategoryTrust:
		if p.Trust == nil {
			return fmt.Errorf("category %s without matching variant", p.Category)
		}
		return p.Trust.validate()
	default:
		return fmt.Errorf("unknown party category: %q", p.Category)
	}
}

func (p *IndividualParty) validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("individual party requires first and last name")
	}
	if p.BirthDate.IsZero() {
		return fmt.Errorf("individual party %s %s requires a birth date", p.FirstName, p.LastName)
	}
	if p.TaxID == "" {
		return fmt.Errorf("individual party %s %s requires a tax id", p.FirstName, p.LastName)
	}
	return nil
}

func (p *OrganizationParty) validate() error {
	if p.LegalName == "" {
		return fmt.Errorf("organization party requires a legal name")
	}
	if p.TaxID == "" {
		return fmt.Errorf("organization party %s requires a tax id", p.LegalName)
	}
	return nil
}

func (p *TrustParty) validate() error {
	if p.TrustName == "" {
		return fmt.Errorf("trust party requires a trust name")
	}
	if p.TrusteeName == "" {
		return fmt.Errorf("trust party %s requires a trustee name", p.TrustName)
	}
	if p.TaxID == "" {
		return fmt.Errorf("trust party %s requires a tax id", p.TrustName)
	}
	return nil
}
