package document

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refiling/internal/filing/models"
	"refiling/pkg/domain"
)

// =============================================================================
// Document Builder Test Suite
// =============================================================================
// Justification for unit tests: the builder enforces the two-stage preflight
// and the header-count bookkeeping. Both must be exercised against crafted
// source data; a rejected batch in production costs a full response cycle.

type BuilderSuite struct {
	suite.Suite
	builder *Builder
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	var err error
	s.builder, err = NewBuilder(Context{
		FilerTaxID:      "12-3456789",
		TransmitterCode: "TCC00042",
		OrgName:         "Acme Title",
		ContactName:     "Compliance Desk",
		ContactPhone:    "(555) 010-0200",
	})
	s.Require().NoError(err)
}

func (s *BuilderSuite) newTransaction() *models.TransactionRecord {
	return &models.TransactionRecord{
		ID:                 domain.NewTransactionID(),
		ClosingDate:        time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		PurchasePriceCents: 85_000_000,
		PropertyAddress: models.Address{
			Street: "14 Harbor Lane", City: "Newport", State: "RI",
			PostalCode: "02840", Country: "US",
		},
		Parties: []models.PartyRecord{
			{
				Role:     models.RoleBuyer,
				Category: models.CategoryIndividual,
				Individual: &models.IndividualParty{
					FirstName: "Dana", LastName: "Whitfield",
					BirthDate: time.Date(1979, 6, 2, 0, 0, 0, 0, time.UTC),
					TaxID:     "987-65-4321",
					Phone:     "+1 555 010 9999",
				},
			},
			{
				Role:     models.RoleSeller,
				Category: models.CategoryOrganization,
				Organization: &models.OrganizationParty{
					LegalName: "Seaside Holdings LLC",
					TaxID:     "12-3456789",
				},
			},
		},
		Payments: []models.Payment{
			{
				AmountCents:   85_000_000,
				AccountNumber: "CH9300762011623852957",
				Institution: models.Institution{
					Name:    "Alpenbank AG",
					TaxID:   "001 122 33",
					Country: "CH",
				},
			},
		},
	}
}

func preflightReasons(s *suite.Suite, err error) []string {
	s.Require().Error(err)
	var preflight *PreflightError
	s.Require().True(errors.As(err, &preflight), "expected *PreflightError, got %T", err)
	return preflight.Reasons
}

// =============================================================================
// Assembly and Count Tests
// =============================================================================

func (s *BuilderSuite) TestBuild() {
	payload, summary, err := s.builder.Build(s.newTransaction())
	s.Require().NoError(err)

	s.Equal(1, summary.ActivityCount)
	s.Equal(3, summary.RequiredPartyCount)
	s.Equal(1, summary.AccountCount)
	s.Equal(1, summary.InstitutionPartyCount)
	s.Equal(1, summary.OwnerIndividualCount)
	s.Equal(0, summary.OwnerOrganizationCount)
	s.Equal(0, summary.OwnerTrustCount)
	s.Empty(summary.Warnings)

	var batch Batch
	s.Require().NoError(xml.Unmarshal(payload, &batch))
	s.Equal(FormTypeCode, batch.FormTypeCode)
	s.Equal(1, batch.ActivityCount)
	s.Equal(1, batch.InstitutionPartyCount)
	s.Equal(1, batch.OwnerIndividualCount)

	s.Run("identification and phone numbers are digits-only", func() {
		text := string(payload)
		s.Contains(text, ">987654321<")
		s.Contains(text, ">123456789<")
		s.Contains(text, ">15550109999<")
		s.NotContains(text, "987-65-4321")
	})

	s.Run("reporting entity carries exactly two identifications", func() {
		entity := partyOfType(s.T(), &batch, PartyTypeReportingEntity)
		s.Require().Len(entity.Identifications, 2)
		s.Equal(IdentificationTIN, entity.Identifications[0].TypeCode)
		s.Equal(IdentificationTCC, entity.Identifications[1].TypeCode)
		s.Equal("TCC00042", entity.Identifications[1].NumberText)
	})

	s.Run("sequence identifiers are unique and complete", func() {
		s.NoError(verifySequences(&batch, summary.SequenceCount))
	})
}

func (s *BuilderSuite) TestBuildOwnerSubtypeCounts() {
	txn := s.newTransaction()
	txn.Parties = append(txn.Parties,
		models.PartyRecord{
			Role:     models.RoleBuyer,
			Category: models.CategoryOrganization,
			Organization: &models.OrganizationParty{
				LegalName: "Harborview Capital Inc",
				TaxID:     "998877665",
			},
		},
		models.PartyRecord{
			Role:     models.RoleBuyer,
			Category: models.CategoryTrust,
			Trust: &models.TrustParty{
				TrustName:   "Whitfield Family Trust",
				TrusteeName: "Dana Whitfield",
				TaxID:       "112233445",
			},
		},
	)

	payload, summary, err := s.builder.Build(txn)
	s.Require().NoError(err)
	s.Equal(1, summary.OwnerIndividualCount)
	s.Equal(1, summary.OwnerOrganizationCount)
	s.Equal(1, summary.OwnerTrustCount)

	var batch Batch
	s.Require().NoError(xml.Unmarshal(payload, &batch))
	s.Equal(1, batch.OwnerOrganizationCount)
	s.Equal(1, batch.OwnerTrustCount)
}

func (s *BuilderSuite) TestBuildMultiplePayments() {
	txn := s.newTransaction()
	txn.Payments = append(txn.Payments, models.Payment{
		AmountCents:   1_000_000,
		AccountNumber: "DE89370400440532013000",
		Institution: models.Institution{
			Name:  "Rheinbank",
			TaxID: "445566",
		},
	})

	_, summary, err := s.builder.Build(txn)
	s.Require().NoError(err)
	s.Equal(2, summary.AccountCount)
	s.Equal(2, summary.InstitutionPartyCount)
}

func (s *BuilderSuite) TestBuildDomesticInstitutionWarning() {
	txn := s.newTransaction()
	txn.Payments[0].Institution.Country = "US"

	// Known mapping conflict: warn, never fail the build over it.
	_, summary, err := s.builder.Build(txn)
	s.Require().NoError(err)
	s.Require().Len(summary.Warnings, 1)
	s.Contains(summary.Warnings[0], "domestic country code")
}

// =============================================================================
// Preflight Tests
// =============================================================================

func (s *BuilderSuite) TestPreflightSourceData() {
	s.Run("missing buyer", func() {
		txn := s.newTransaction()
		txn.Parties = txn.Parties[1:]
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "at least one buyer")
	})

	s.Run("placeholder institution name", func() {
		txn := s.newTransaction()
		txn.Payments[0].Institution.Name = "N/A"
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "placeholder institution name")
	})

	s.Run("placeholder party name", func() {
		txn := s.newTransaction()
		txn.Parties[1].Organization.LegalName = "UNKNOWN"
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "placeholder name")
	})

	s.Run("non-numeric tax id", func() {
		txn := s.newTransaction()
		txn.Parties[0].Individual.TaxID = "ABC123"
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "digits only")
	})

	s.Run("non-positive purchase price", func() {
		txn := s.newTransaction()
		txn.PurchasePriceCents = 0
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "purchase price")
	})

	s.Run("individual without birth date", func() {
		txn := s.newTransaction()
		txn.Parties[0].Individual.BirthDate = time.Time{}
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "birth date")
	})

	s.Run("multiple failures are reported together", func() {
		txn := s.newTransaction()
		txn.PurchasePriceCents = 0
		txn.Payments[0].Institution.Name = ""
		_, _, err := s.builder.Build(txn)
		reasons := preflightReasons(&s.Suite, err)
		s.GreaterOrEqual(len(reasons), 2)
	})
}

func (s *BuilderSuite) TestPreflightConfiguration() {
	s.Run("missing filer tax id", func() {
		builder, err := NewBuilder(Context{
			TransmitterCode: "TCC00042",
			OrgName:         "Acme Title",
		})
		s.Require().NoError(err)
		_, _, err = builder.Build(s.newTransaction())
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "reporting entity tax id")
	})

	s.Run("missing transmitter code", func() {
		builder, err := NewBuilder(Context{
			FilerTaxID: "123456789",
			OrgName:    "Acme Title",
		})
		s.Require().NoError(err)
		_, _, err = builder.Build(s.newTransaction())
		reasons := preflightReasons(&s.Suite, err)
		s.Contains(strings.Join(reasons, "; "), "transmitter control code")
	})

	s.Run("missing org name fails construction", func() {
		_, err := NewBuilder(Context{FilerTaxID: "123456789", TransmitterCode: "TCC00042"})
		s.Error(err)
	})
}

// =============================================================================
// Normalization Tests
// =============================================================================

func TestNormalizeDigits(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  string
		fails bool
	}{
		{name: "ssn with dashes", in: "987-65-4321", want: "987654321"},
		{name: "phone with punctuation", in: "+1 (555) 010.0200", want: "15550100200"},
		{name: "letters rejected", in: "12A45", fails: true},
		{name: "separators only", in: "--  ..", fails: true},
		{name: "empty", in: "", fails: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeDigits("field", tc.in)
			if tc.fails {
				if err == nil {
					t.Fatalf("expected failure for %q, got %q", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsForbiddenToken(t *testing.T) {
	for _, token := range []string{"UNKNOWN", "unknown", " n/a ", "None", "TBD", "xx"} {
		if !isForbiddenToken(token) {
			t.Fatalf("expected %q to be forbidden", token)
		}
	}
	for _, token := range []string{"Acme Title", "Nexus Bank", "NAB"} {
		if isForbiddenToken(token) {
			t.Fatalf("expected %q to be allowed", token)
		}
	}
}

func partyOfType(t *testing.T, batch *Batch, code string) Party {
	t.Helper()
	for _, activity := range batch.Activities {
		for _, party := range activity.Parties {
			if party.ActivityPartyTypeCode == code {
				return party
			}
		}
	}
	t.Fatalf("no party of type %s in batch", code)
	return Party{}
}
