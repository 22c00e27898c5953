package mdib

import "github.com/sdcgo/sdc-core/internal/model"

// ReportAction is the closed set of report types spec.md §4.F names,
// mirrored 1:1 from the transaction kind that produced them. Every
// Description transaction yields a DescriptionModificationReport, which
// lists changed and removed entities together.
type ReportAction string

const (
	DescriptionModificationReport ReportAction = "DescriptionModificationReport"
	EpisodicMetricReport          ReportAction = "EpisodicMetricReport"
	EpisodicAlertReport           ReportAction = "EpisodicAlertReport"
	EpisodicOperationalStateReport ReportAction = "EpisodicOperationalStateReport"
	EpisodicComponentReport        ReportAction = "EpisodicComponentReport"
	EpisodicContextReport          ReportAction = "EpisodicContextReport"
	OperationInvokedReport         ReportAction = "OperationInvokedReport"

	PeriodicMetricReport          ReportAction = "PeriodicMetricReport"
	PeriodicAlertReport           ReportAction = "PeriodicAlertReport"
	PeriodicOperationalStateReport ReportAction = "PeriodicOperationalStateReport"
	PeriodicComponentReport        ReportAction = "PeriodicComponentReport"
	PeriodicContextReport          ReportAction = "PeriodicContextReport"
)

// PeriodicCounterpart returns the periodic report action that aggregates
// the same entity category as an episodic action, or "" if the action has
// no periodic counterpart (DescriptionModificationReport and
// OperationInvokedReport are always episodic).
func PeriodicCounterpart(a ReportAction) ReportAction {
	switch a {
	case EpisodicMetricReport:
		return PeriodicMetricReport
	case EpisodicAlertReport:
		return PeriodicAlertReport
	case EpisodicOperationalStateReport:
		return PeriodicOperationalStateReport
	case EpisodicComponentReport:
		return PeriodicComponentReport
	case EpisodicContextReport:
		return PeriodicContextReport
	}
	return ""
}

// kindToAction maps a transaction kind to the episodic report action it
// produces.
var kindToAction = map[TransactionKind]ReportAction{
	DescriptionTransaction: DescriptionModificationReport,
	MetricTransaction:      EpisodicMetricReport,
	AlertTransaction:       EpisodicAlertReport,
	OperationTransaction:   EpisodicOperationalStateReport,
	ComponentTransaction:   EpisodicComponentReport,
	ContextTransaction:     EpisodicContextReport,
}

// Report describes everything one committed transaction changed. The
// reporting pipeline (package reporting) turns this into the wire-level
// report message(s) for each subscription.
type Report struct {
	Action      ReportAction
	MdibVersion uint64
	Updated     []model.Entity
	Removed     []model.Handle
}

func buildReport(kind TransactionKind, version uint64, base, work *Snapshot, touched map[model.Handle]bool) *Report {
	r := &Report{Action: kindToAction[kind], MdibVersion: version}
	for h := range touched {
		if n, ok := work.nodes[h]; ok {
			r.Updated = append(r.Updated, *n.entity)
		} else {
			r.Removed = append(r.Removed, h)
		}
	}
	return r
}
