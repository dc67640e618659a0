// =============================================================================
// zx12 - Envelope Reader
// =============================================================================
//
// Groups a tokenized segment stream into the standard X12 envelope layers:
//
//   ISA ... IEA   interchange
//   GS  ... GE    functional group
//   ST  ... SE    transaction set
//
// Envelope bookkeeping problems (control number mismatches, wrong counts,
// missing trailers) are recorded as warnings rather than failures: the point
// of the pipeline is best-effort structured output, and a payer that fat
// fingers an SE count should not take down the claims behind it.
//
// =============================================================================

package x12

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LibrePPS/zx12-go/internal/types"
)

// =============================================================================
// ENVELOPE SEGMENT IDS
// =============================================================================

const (
	segIDInterchangeHeader  = "ISA"
	segIDInterchangeTrailer = "IEA"
	segIDGroupHeader        = "GS"
	segIDGroupTrailer       = "GE"
	segIDTransactionHeader  = "ST"
	segIDTransactionTrailer = "SE"
)

// functionalIdentifierCodes maps a transaction set id (ST01) to the GS01
// functional identifier expected to envelope it. Partial by design; unlisted
// sets simply skip the cross-check.
var functionalIdentifierCodes = map[string]string{
	"270": "HS",
	"271": "HB",
	"276": "HR",
	"277": "HN",
	"278": "HI",
	"820": "RA",
	"834": "BE",
	"835": "HP",
	"837": "HC",
	"997": "FA",
	"999": "FA",
}

// =============================================================================
// ENVELOPE TYPES
// =============================================================================

// TransactionSet is one ST...SE unit. Segments includes the ST and SE
// segments themselves; the engine's header/trailer definitions claim them.
type TransactionSet struct {
	// SetID is the transaction set identifier code (ST01), e.g. "837".
	SetID string

	// ControlNumber is the transaction set control number (ST02).
	ControlNumber string

	// ImplementationRef is the implementation convention reference: ST03
	// when present, otherwise the enclosing group's GS08 version string.
	// Used to select among schemas for the same set id (837P vs 837I).
	ImplementationRef string

	// Segments holds the transaction's full segment stream, ST through SE.
	Segments []types.Segment
}

// FunctionalGroup is one GS...GE unit.
type FunctionalGroup struct {
	// FunctionalCode is the functional identifier (GS01), e.g. "HC".
	FunctionalCode string

	// Sender and Receiver are the application codes (GS02, GS03).
	Sender   string
	Receiver string

	// Date and Time are the group creation stamp (GS04, GS05).
	Date string
	Time string

	// ControlNumber is the group control number (GS06).
	ControlNumber string

	// Version is the version/release/industry id (GS08), which carries the
	// implementation convention reference in HIPAA usage.
	Version string

	// Transactions are the ST...SE units inside this group, in order.
	Transactions []TransactionSet
}

// Interchange is one ISA...IEA unit together with the warnings accumulated
// while reading its envelope bookkeeping.
type Interchange struct {
	// Sender and Receiver are the interchange ids (ISA06, ISA08), with the
	// fixed-width space padding trimmed.
	Sender   string
	Receiver string

	// Date and Time are the interchange stamp (ISA09, ISA10).
	Date string
	Time string

	// Version is the interchange control version (ISA12).
	Version string

	// ControlNumber is the interchange control number (ISA13).
	ControlNumber string

	// Usage is the usage indicator (ISA15): "P" production, "T" test.
	Usage string

	// FunctionalGroups are the GS...GE units inside this interchange.
	FunctionalGroups []FunctionalGroup

	// Warnings records envelope bookkeeping problems: count or control
	// number mismatches, missing trailers, GS01/set-id disagreements.
	Warnings []string
}

// =============================================================================
// ENVELOPE SPLITTING
// =============================================================================

// SplitEnvelope groups a tokenized stream into interchanges. Tokenize
// guarantees segment 0 is an ISA, so a well-formed stream always opens an
// interchange before anything else; stray segments outside any open
// transaction are envelope noise and are dropped with a warning.
func SplitEnvelope(segments []types.Segment) ([]Interchange, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	var (
		interchanges []Interchange
		ic           *Interchange
		group        *FunctionalGroup
		txn          *TransactionSet
	)

	warn := func(format string, args ...any) {
		if ic != nil {
			ic.Warnings = append(ic.Warnings, fmt.Sprintf(format, args...))
		}
	}

	closeTxn := func() {
		if txn == nil {
			return
		}
		warn("transaction %s: missing SE trailer", txn.ControlNumber)
		group.Transactions = append(group.Transactions, *txn)
		txn = nil
	}
	closeGroup := func() {
		if group == nil {
			return
		}
		closeTxn()
		warn("group %s: missing GE trailer", group.ControlNumber)
		ic.FunctionalGroups = append(ic.FunctionalGroups, *group)
		group = nil
	}
	closeInterchange := func(terminated bool) {
		if ic == nil {
			return
		}
		closeGroup()
		if !terminated {
			ic.Warnings = append(ic.Warnings, "interchange "+ic.ControlNumber+": missing IEA trailer")
		}
		interchanges = append(interchanges, *ic)
		ic = nil
	}

	for _, seg := range segments {
		switch seg.ID() {
		case segIDInterchangeHeader:
			closeInterchange(false)
			ic = newInterchange(seg)

		case segIDGroupHeader:
			if ic == nil {
				continue
			}
			closeGroup()
			group = newFunctionalGroup(seg)

		case segIDTransactionHeader:
			if ic == nil {
				continue
			}
			if group == nil {
				warn("ST outside any functional group")
				group = &FunctionalGroup{}
			}
			closeTxn()
			txn = newTransactionSet(seg, group)
			if want := functionalIdentifierCodes[txn.SetID]; want != "" &&
				group.FunctionalCode != "" && group.FunctionalCode != want {
				warn("transaction set %s expects functional id %s, group declares %s",
					txn.SetID, want, group.FunctionalCode)
			}

		case segIDTransactionTrailer:
			if txn == nil {
				warn("SE without matching ST")
				continue
			}
			txn.Segments = append(txn.Segments, seg)
			checkTransactionTrailer(seg, txn, warn)
			group.Transactions = append(group.Transactions, *txn)
			txn = nil

		case segIDGroupTrailer:
			if group == nil {
				warn("GE without matching GS")
				continue
			}
			closeTxn()
			checkGroupTrailer(seg, group, warn)
			ic.FunctionalGroups = append(ic.FunctionalGroups, *group)
			group = nil

		case segIDInterchangeTrailer:
			if ic == nil {
				continue
			}
			closeGroup()
			checkInterchangeTrailer(seg, ic)
			closeInterchange(true)

		default:
			if txn != nil {
				txn.Segments = append(txn.Segments, seg)
			} else {
				warn("segment %s outside any transaction", seg.ID())
			}
		}
	}
	closeInterchange(false)

	return interchanges, nil
}

// =============================================================================
// ENVELOPE EXTRACTION HELPERS
// =============================================================================

// element reads a data element by position and trims the space padding that
// fixed-width ISA fields carry.
func element(seg types.Segment, pos int) string {
	v, _ := seg.Element(pos)
	return strings.TrimSpace(v)
}

func newInterchange(isa types.Segment) *Interchange {
	return &Interchange{
		Sender:        element(isa, 5),
		Receiver:      element(isa, 7),
		Date:          element(isa, 8),
		Time:          element(isa, 9),
		Version:       element(isa, 11),
		ControlNumber: element(isa, 12),
		Usage:         element(isa, 14),
	}
}

func newFunctionalGroup(gs types.Segment) *FunctionalGroup {
	return &FunctionalGroup{
		FunctionalCode: element(gs, 0),
		Sender:         element(gs, 1),
		Receiver:       element(gs, 2),
		Date:           element(gs, 3),
		Time:           element(gs, 4),
		ControlNumber:  element(gs, 5),
		Version:        element(gs, 7),
	}
}

func newTransactionSet(st types.Segment, group *FunctionalGroup) *TransactionSet {
	txn := &TransactionSet{
		SetID:             element(st, 0),
		ControlNumber:     element(st, 1),
		ImplementationRef: element(st, 2),
		Segments:          []types.Segment{st},
	}
	if txn.ImplementationRef == "" {
		txn.ImplementationRef = group.Version
	}
	return txn
}

func checkTransactionTrailer(se types.Segment, txn *TransactionSet, warn func(string, ...any)) {
	if count, err := strconv.Atoi(element(se, 0)); err == nil && count != len(txn.Segments) {
		warn("transaction %s: SE declares %d segments, found %d",
			txn.ControlNumber, count, len(txn.Segments))
	}
	if ctrl := element(se, 1); ctrl != txn.ControlNumber {
		warn("transaction %s: SE control number %s does not match ST", txn.ControlNumber, ctrl)
	}
}

func checkGroupTrailer(ge types.Segment, group *FunctionalGroup, warn func(string, ...any)) {
	if count, err := strconv.Atoi(element(ge, 0)); err == nil && count != len(group.Transactions) {
		warn("group %s: GE declares %d transactions, found %d",
			group.ControlNumber, count, len(group.Transactions))
	}
	if ctrl := element(ge, 1); ctrl != group.ControlNumber {
		warn("group %s: GE control number %s does not match GS", group.ControlNumber, ctrl)
	}
}

func checkInterchangeTrailer(iea types.Segment, ic *Interchange) {
	if count, err := strconv.Atoi(element(iea, 0)); err == nil && count != len(ic.FunctionalGroups) {
		ic.Warnings = append(ic.Warnings, fmt.Sprintf("interchange %s: IEA declares %d groups, found %d",
			ic.ControlNumber, count, len(ic.FunctionalGroups)))
	}
	if ctrl := element(iea, 1); ctrl != ic.ControlNumber {
		ic.Warnings = append(ic.Warnings, fmt.Sprintf("interchange %s: IEA control number %s does not match ISA",
			ic.ControlNumber, ctrl))
	}
}
