package document

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"refiling/internal/filing/models"
)

// Context carries the configuration-sourced values stamped onto every batch.
// The two reporting-entity identifiers come from configuration, never from
// the transaction record.
type Context struct {
	FilerTaxID      string
	TransmitterCode string
	OrgName         string
	ContactName     string
	ContactPhone    string
}

// Summary is the structural accounting of one built document. Header counts
// are computed from source data before serialization and re-verified against
// the serialized structure afterwards.
type Summary struct {
	ActivityCount          int
	RequiredPartyCount     int
	AccountCount           int
	InstitutionPartyCount  int
	OwnerIndividualCount   int
	OwnerOrganizationCount int
	OwnerTrustCount        int
	SequenceCount          int
	Warnings               []string
}

// Builder assembles the canonical transaction model into the regulator batch
// document and runs the two-stage preflight.
type Builder struct {
	ctx Context
}

func NewBuilder(ctx Context) (*Builder, error) {
	if ctx.OrgName == "" {
		return nil, fmt.Errorf("builder requires an organization name")
	}
	return &Builder{ctx: ctx}, nil
}

// Build maps the transaction onto the batch schema and returns the serialized
// document with its structural summary. Any failure is a *PreflightError and
// means nothing may be handed to the transport.
func (b *Builder) Build(txn *models.TransactionRecord) ([]byte, *Summary, error) {
	if err := b.preflightSource(txn); err != nil {
		return nil, nil, err
	}

	batch, summary, err := b.assemble(txn)
	if err != nil {
		return nil, nil, err
	}

	payload, err := xml.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, nil, preflightFailure("serialize batch: " + err.Error())
	}
	payload = append([]byte(xml.Header), payload...)

	if err := verifyStructure(payload, summary); err != nil {
		return nil, nil, err
	}
	return payload, summary, nil
}

// preflightSource validates the source data before any serialization.
func (b *Builder) preflightSource(txn *models.TransactionRecord) error {
	var reasons []string

	if _, err := normalizeDigits("filer tax id", b.ctx.FilerTaxID); err != nil {
		reasons = append(reasons, "reporting entity tax id: "+err.Error())
	}
	if strings.TrimSpace(b.ctx.TransmitterCode) == "" {
		reasons = append(reasons, "reporting entity transmitter control code is missing")
	}

	if txn.ClosingDate.IsZero() {
		reasons = append(reasons, "transaction closing date is missing")
	}
	if txn.PurchasePriceCents <= 0 {
		reasons = append(reasons, "transaction purchase price must be positive")
	}
	if len(txn.Buyers()) == 0 {
		reasons = append(reasons, "transaction requires at least one buyer party")
	}
	if len(txn.Sellers()) == 0 {
		reasons = append(reasons, "transaction requires at least one seller party")
	}
	if len(txn.Payments) == 0 {
		reasons = append(reasons, "transaction requires at least one payment entry")
	}

	for i, party := range txn.Parties {
		if err := party.Validate(); err != nil {
			reasons = append(reasons, fmt.Sprintf("party %d: %v", i+1, err))
			continue
		}
		name := party.DisplayName()
		if isForbiddenToken(name) {
			reasons = append(reasons, fmt.Sprintf("party %d: placeholder name %q is forbidden", i+1, name))
		}
		if _, err := normalizeDigits(fmt.Sprintf("party %d tax id", i+1), party.TaxID()); err != nil {
			reasons = append(reasons, err.Error())
		}
		if phone := party.Phone(); phone != "" {
			if _, err := normalizeDigits(fmt.Sprintf("party %d phone", i+1), phone); err != nil {
				reasons = append(reasons, err.Error())
			}
		}
	}

	for i, payment := range txn.Payments {
		if payment.AmountCents <= 0 {
			reasons = append(reasons, fmt.Sprintf("payment %d: amount must be positive", i+1))
		}
		if payment.Institution.Name == "" {
			reasons = append(reasons, fmt.Sprintf("payment %d: holding institution name is missing", i+1))
		}
		if isForbiddenToken(payment.Institution.Name) {
			reasons = append(reasons, fmt.Sprintf("payment %d: placeholder institution name %q is forbidden", i+1, payment.Institution.Name))
		}
		if _, err := normalizeDigits(fmt.Sprintf("payment %d institution tax id", i+1), payment.Institution.TaxID); err != nil {
			reasons = append(reasons, err.Error())
		}
	}

	if len(reasons) > 0 {
		return preflightFailure(reasons...)
	}
	return nil
}

// assemble walks the document in schema order, assigning a unique numeric
// sequence identifier to every element that requires one.
func (b *Builder) assemble(txn *models.TransactionRecord) (*Batch, *Summary, error) {
	seq := 0
	next := func() int {
		seq++
		return seq
	}

	summary := &Summary{ActivityCount: 1}

	activity := Activity{
		SeqNum:             next(),
		ClosingDateText:    txn.ClosingDate.Format("20060102"),
		PurchaseAmountText: strconv.FormatInt(txn.PurchasePriceCents/100, 10),
		Property:           locationOf(txn.PropertyAddress),
	}

	// The three required roles come first, always in this order.
	reportingEntity, err := b.reportingEntityParty(next)
	if err != nil {
		return nil, nil, err
	}
	activity.Parties = append(activity.Parties,
		reportingEntity,
		Party{
			SeqNum:                next(),
			ActivityPartyTypeCode: PartyTypeReportingContact,
			PartyNameText:         b.contactName(),
			PhoneNumberText:       b.contactPhoneDigits(),
		},
		Party{
			SeqNum:                next(),
			ActivityPartyTypeCode: PartyTypeFiler,
			PartyNameText:         b.ctx.OrgName,
		},
	)
	summary.RequiredPartyCount = 3

	for _, buyer := range txn.Buyers() {
		p, err := transactionParty(buyer, PartyTypeOwner, next)
		if err != nil {
			return nil, nil, err
		}
		activity.Parties = append(activity.Parties, p)
		switch buyer.Category {
		case models.CategoryIndividual:
			summary.OwnerIndividualCount++
		case models.CategoryOrganization:
			summary.OwnerOrganizationCount++
		case models.CategoryTrust:
			summary.OwnerTrustCount++
		}
	}
	for _, seller := range txn.Sellers() {
		p, err := transactionParty(seller, PartyTypeTransferor, next)
		if err != nil {
			return nil, nil, err
		}
		activity.Parties = append(activity.Parties, p)
	}

	for _, payment := range txn.Payments {
		institution, err := institutionParty(payment.Institution, next)
		if err != nil {
			return nil, nil, err
		}
		activity.Accounts = append(activity.Accounts, Account{
			SeqNum:            next(),
			AccountNumberText: payment.AccountNumber,
			PaymentAmountText: strconv.FormatInt(payment.AmountCents/100, 10),
			Institution:       institution,
		})
		summary.AccountCount++
		summary.InstitutionPartyCount++

		// Known mapping risk: the schema reportedly disallows a domestic
		// country code here, yet source data routinely designates a domestic
		// institution. Flag it for review instead of guessing around it.
		if strings.EqualFold(payment.Institution.Country, "US") {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("holding institution %q carries domestic country code", payment.Institution.Name))
		}
	}

	summary.SequenceCount = seq

	batch := &Batch{
		ActivityCount:          summary.ActivityCount,
		InstitutionPartyCount:  summary.InstitutionPartyCount,
		OwnerIndividualCount:   summary.OwnerIndividualCount,
		OwnerOrganizationCount: summary.OwnerOrganizationCount,
		OwnerTrustCount:        summary.OwnerTrustCount,
		FormTypeCode:           FormTypeCode,
		Activities:             []Activity{activity},
	}

	// First count assertion, from source data before serialization.
	if err := assertCounts(batch, summary); err != nil {
		return nil, nil, err
	}
	return batch, summary, nil
}

// reportingEntityParty builds the reporting-entity role with its exactly two
// identification records: the tax identifier and the transmitter control code.
func (b *Builder) reportingEntityParty(next func() int) (Party, error) {
	taxID, err := normalizeDigits("reporting entity tax id", b.ctx.FilerTaxID)
	if err != nil {
		return Party{}, preflightFailure(err.Error())
	}
	return Party{
		SeqNum:                next(),
		ActivityPartyTypeCode: PartyTypeReportingEntity,
		PartyNameText:         b.ctx.OrgName,
		Identifications: []Identification{
			{SeqNum: next(), TypeCode: IdentificationTIN, NumberText: taxID},
			{SeqNum: next(), TypeCode: IdentificationTCC, NumberText: b.ctx.TransmitterCode},
		},
	}, nil
}

func (b *Builder) contactName() string {
	if b.ctx.ContactName != "" {
		return b.ctx.ContactName
	}
	return b.ctx.OrgName
}

func (b *Builder) contactPhoneDigits() string {
	if b.ctx.ContactPhone == "" {
		return ""
	}
	digits, err := normalizeDigits("contact phone", b.ctx.ContactPhone)
	if err != nil {
		return ""
	}
	return digits
}

func transactionParty(record models.PartyRecord, typeCode string, next func() int) (Party, error) {
	taxID, err := normalizeDigits("party tax id", record.TaxID())
	if err != nil {
		return Party{}, preflightFailure(err.Error())
	}

	p := Party{
		SeqNum:                next(),
		ActivityPartyTypeCode: typeCode,
		PartyNameText:         record.DisplayName(),
		Address:               locationOf(record.Address()),
	}
	if typeCode == PartyTypeOwner {
		p.OwnerTypeCode = ownerTypeCode(record.Category)
	}
	if record.Category == models.CategoryIndividual && record.Individual != nil {
		p.IndividualBirthDateText = record.Individual.BirthDate.Format("20060102")
	}
	if phone := record.Phone(); phone != "" {
		digits, err := normalizeDigits("party phone", phone)
		if err != nil {
			return Party{}, preflightFailure(err.Error())
		}
		p.PhoneNumberText = digits
	}
	p.Identifications = []Identification{
		{SeqNum: next(), TypeCode: IdentificationTIN, NumberText: taxID},
	}
	return p, nil
}

func institutionParty(inst models.Institution, next func() int) (Party, error) {
	taxID, err := normalizeDigits("institution tax id", inst.TaxID)
	if err != nil {
		return Party{}, preflightFailure(err.Error())
	}
	address := inst.Address
	if address.Country == "" {
		address.Country = inst.Country
	}
	return Party{
		SeqNum:                next(),
		ActivityPartyTypeCode: PartyTypeHoldingInstitution,
		PartyNameText:         inst.Name,
		Address:               locationOf(address),
		Identifications: []Identification{
			{SeqNum: next(), TypeCode: IdentificationTIN, NumberText: taxID},
		},
	}, nil
}

func ownerTypeCode(category models.PartyCategory) string {
	switch category {
	case models.CategoryIndividual:
		return OwnerTypeIndividual
	case models.CategoryOrganization:
		return OwnerTypeOrganization
	case models.CategoryTrust:
		return OwnerTypeTrust
	}
	return ""
}

func locationOf(a models.Address) *Location {
	if a == (models.Address{}) {
		return nil
	}
	return &Location{
		StreetText:    a.Street,
		CityText:      a.City,
		StateCodeText: a.State,
		ZIPCode:       a.PostalCode,
		CountryCode:   a.Country,
	}
}

// assertCounts verifies the header attributes against the elements actually
// present in the assembled structure.
func assertCounts(batch *Batch, summary *Summary) error {
	counts := countStructure(batch)
	var reasons []string

	if counts.activities != batch.ActivityCount {
		reasons = append(reasons, fmt.Sprintf("activity count %d does not match emitted %d", batch.ActivityCount, counts.activities))
	}
	if counts.institutions != batch.InstitutionPartyCount {
		reasons = append(reasons, fmt.Sprintf("institution party count %d does not match emitted %d", batch.InstitutionPartyCount, counts.institutions))
	}
	if counts.ownerIndividuals != batch.OwnerIndividualCount {
		reasons = append(reasons, fmt.Sprintf("owner individual count %d does not match emitted %d", batch.OwnerIndividualCount, counts.ownerIndividuals))
	}
	if counts.ownerOrganizations != batch.OwnerOrganizationCount {
		reasons = append(reasons, fmt.Sprintf("owner organization count %d does not match emitted %d", batch.OwnerOrganizationCount, counts.ownerOrganizations))
	}
	if counts.ownerTrusts != batch.OwnerTrustCount {
		reasons = append(reasons, fmt.Sprintf("owner trust count %d does not match emitted %d", batch.OwnerTrustCount, counts.ownerTrusts))
	}
	if counts.accounts != summary.AccountCount {
		reasons = append(reasons, fmt.Sprintf("account count %d does not match emitted %d", summary.AccountCount, counts.accounts))
	}

	if len(reasons) > 0 {
		return preflightFailure(reasons...)
	}
	return nil
}

// verifyStructure is the structural preflight: it re-parses the serialized
// bytes and confirms header counts, required roles, and sequence identifiers
// against what was actually emitted.
func verifyStructure(payload []byte, summary *Summary) error {
	var parsed Batch
	if err := xml.Unmarshal(payload, &parsed); err != nil {
		return preflightFailure("serialized batch does not parse: " + err.Error())
	}

	var reasons []string
	counts := countStructure(&parsed)

	if parsed.FormTypeCode != FormTypeCode {
		reasons = append(reasons, fmt.Sprintf("form type %q, want %q", parsed.FormTypeCode, FormTypeCode))
	}
	if counts.activities != parsed.ActivityCount || counts.activities != summary.ActivityCount {
		reasons = append(reasons, fmt.Sprintf("serialized activity count %d does not match header %d", counts.activities, parsed.ActivityCount))
	}
	if counts.institutions != parsed.InstitutionPartyCount {
		reasons = append(reasons, fmt.Sprintf("serialized institution count %d does not match header %d", counts.institutions, parsed.InstitutionPartyCount))
	}
	if counts.ownerIndividuals != parsed.OwnerIndividualCount ||
		counts.ownerOrganizations != parsed.OwnerOrganizationCount ||
		counts.ownerTrusts != parsed.OwnerTrustCount {
		reasons = append(reasons, "serialized owner sub-type counts do not match header")
	}

	for _, activity := range parsed.Activities {
		for _, code := range []string{PartyTypeReportingEntity, PartyTypeReportingContact, PartyTypeFiler} {
			if countPartiesOfType(activity, code) != 1 {
				reasons = append(reasons, fmt.Sprintf("activity %d requires exactly one party of type %s", activity.SeqNum, code))
			}
		}
		for _, account := range activity.Accounts {
			if account.Institution.ActivityPartyTypeCode != PartyTypeHoldingInstitution {
				reasons = append(reasons, fmt.Sprintf("account %d institution party has type %q", account.SeqNum, account.Institution.ActivityPartyTypeCode))
			}
		}
		for _, party := range activity.Parties {
			if party.ActivityPartyTypeCode == PartyTypeReportingEntity && len(party.Identifications) != 2 {
				reasons = append(reasons, fmt.Sprintf("reporting entity carries %d identifications, want 2", len(party.Identifications)))
			}
		}
	}

	if err := verifySequences(&parsed, summary.SequenceCount); err != nil {
		reasons = append(reasons, err.Error())
	}

	if len(reasons) > 0 {
		return preflightFailure(reasons...)
	}
	return nil
}

// verifySequences asserts every sequence identifier is positive and unique,
// and that the total matches the count assigned during assembly.
func verifySequences(batch *Batch, want int) error {
	seen := make(map[int]bool)
	var record func(seq int) error
	record = func(seq int) error {
		if seq <= 0 {
			return fmt.Errorf("non-positive sequence identifier %d", seq)
		}
		if seen[seq] {
			return fmt.Errorf("duplicate sequence identifier %d", seq)
		}
		seen[seq] = true
		return nil
	}

	collect := func(p Party) error {
		if err := record(p.SeqNum); err != nil {
			return err
		}
		for _, id := range p.Identifications {
			if err := record(id.SeqNum); err != nil {
				return err
			}
		}
		return nil
	}

	for _, activity := range batch.Activities {
		if err := record(activity.SeqNum); err != nil {
			return err
		}
		for _, party := range activity.Parties {
			if err := collect(party); err != nil {
				return err
			}
		}
		for _, account := range activity.Accounts {
			if err := record(account.SeqNum); err != nil {
				return err
			}
			if err := collect(account.Institution); err != nil {
				return err
			}
		}
	}
	if want > 0 && len(seen) != want {
		return fmt.Errorf("found %d sequence identifiers, assembly assigned %d", len(seen), want)
	}
	return nil
}

type structureCounts struct {
	activities         int
	institutions       int
	accounts           int
	ownerIndividuals   int
	ownerOrganizations int
	ownerTrusts        int
}

func countStructure(batch *Batch) structureCounts {
	var c structureCounts
	c.activities = len(batch.Activities)
	for _, activity := range batch.Activities {
		c.accounts += len(activity.Accounts)
		for _, account := range activity.Accounts {
			if account.Institution.ActivityPartyTypeCode == PartyTypeHoldingInstitution {
				c.institutions++
			}
		}
		for _, party := range activity.Parties {
			if party.ActivityPartyTypeCode != PartyTypeOwner {
				continue
			}
			switch party.OwnerTypeCode {
			case OwnerTypeIndividual:
				c.ownerIndividuals++
			case OwnerTypeOrganization:
				c.ownerOrganizations++
			case OwnerTypeTrust:
				c.ownerTrusts++
			}
		}
	}
	return c
}

func countPartiesOfType(activity Activity, code string) int {
	n := 0
	for _, party := range activity.Parties {
		if party.ActivityPartyTypeCode == code {
			n++
		}
	}
	return n
}
