package document

import "encoding/xml"

// Regulator party taxonomy codes. These are wire constants; changing them
// breaks batch compatibility.
const (
	PartyTypeReportingEntity    = "35"
	PartyTypeReportingContact   = "37"
	PartyTypeFiler              = "30"
	PartyTypeOwner              = "63"
	PartyTypeTransferor         = "64"
	PartyTypeHoldingInstitution = "41"
)

// Owner sub-type codes carried on owner parties.
const (
	OwnerTypeIndividual   = "I"
	OwnerTypeOrganization = "O"
	OwnerTypeTrust        = "T"
)

// Identification type codes.
const (
	IdentificationTIN = "TIN"
	IdentificationTCC = "TCC"
)

// FormTypeCode is the single form-type declaration every batch carries.
const FormTypeCode = "RRETR"

// Batch is the root element of the regulator batch document. Header counts
// are attributes and must equal the number of corresponding elements present.
type Batch struct {
	XMLName xml.Name `xml:"ReportBatch"`

	ActivityCount          int `xml:"ActivityCount,attr"`
	InstitutionPartyCount  int `xml:"InstitutionPartyCount,attr"`
	OwnerIndividualCount   int `xml:"OwnerIndividualCount,attr"`
	OwnerOrganizationCount int `xml:"OwnerOrganizationCount,attr"`
	OwnerTrustCount        int `xml:"OwnerTrustCount,attr"`

	FormTypeCode string     `xml:"FormTypeCode"`
	Activities   []Activity `xml:"Activity"`
}

// Activity is one complete filing record within a batch.
type Activity struct {
	SeqNum             int        `xml:"SeqNum,attr"`
	ClosingDateText    string     `xml:"ClosingDateText"`
	PurchaseAmountText string     `xml:"PurchaseAmountText"`
	Property           *Location  `xml:"PropertyAddress"`
	Parties            []Party    `xml:"Party"`
	Accounts           []Account  `xml:"Account"`
}

// Party is any participant element. The three required roles
// (reporting-entity, reporting-contact, filer) come first in schema order,
// then owners and transferors from the transaction record.
type Party struct {
	SeqNum                  int              `xml:"SeqNum,attr"`
	ActivityPartyTypeCode   string           `xml:"ActivityPartyTypeCode"`
	OwnerTypeCode           string           `xml:"OwnerTypeCode,omitempty"`
	PartyNameText           string           `xml:"PartyNameText"`
	IndividualBirthDateText string           `xml:"IndividualBirthDateText,omitempty"`
	PhoneNumberText         string           `xml:"PhoneNumberText,omitempty"`
	Address                 *Location        `xml:"Address,omitempty"`
	Identifications         []Identification `xml:"PartyIdentification"`
}

// Identification is one identification record on a party.
type Identification struct {
	SeqNum     int    `xml:"SeqNum,attr"`
	TypeCode   string `xml:"PartyIdentificationTypeCode"`
	NumberText string `xml:"PartyIdentificationNumberText"`
}

// Account is one financial-account section. It carries exactly one
// holding-institution party.
type Account struct {
	SeqNum            int    `xml:"SeqNum,attr"`
	AccountNumberText string `xml:"AccountNumberText,omitempty"`
	PaymentAmountText string `xml:"PaymentAmountText"`
	Institution       Party  `xml:"Party"`
}

// Location is a postal address element.
type Location struct {
	StreetText     string `xml:"RawStreetAddress1Text,omitempty"`
	CityText       string `xml:"RawCityText,omitempty"`
	StateCodeText  string `xml:"RawStateCodeText,omitempty"`
	ZIPCode        string `xml:"RawZIPCode,omitempty"`
	CountryCode    string `xml:"RawCountryCodeText,omitempty"`
}
