package diag

// Reporter: минимальный контракт получения диагностик от анализаторов.
// Реализации: BagReporter (кладёт в Bag), DedupReporter, SuppressReporter.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder accumulates diagnostic details before emitting to Reporter.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

// NewReportBuilder constructs a builder bound to Reporter.
func NewReportBuilder(r Reporter, sev Severity, code Code, primary Location, msg string) *ReportBuilder {
	return &ReportBuilder{
		reporter: r,
		diag:     New(sev, code, primary, msg),
	}
}

// ReportError is a shortcut for SevError diagnostics.
func ReportError(r Reporter, code Code, primary Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevError, code, primary, msg)
}

// ReportWarning is a shortcut for SevWarning diagnostics.
func ReportWarning(r Reporter, code Code, primary Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevWarning, code, primary, msg)
}

// ReportInfo is a shortcut for SevInfo diagnostics.
func ReportInfo(r Reporter, code Code, primary Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevInfo, code, primary, msg)
}

// ReportHidden is a shortcut for SevHidden diagnostics.
func ReportHidden(r Reporter, code Code, primary Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevHidden, code, primary, msg)
}

// WithTag appends a classification tag.
func (b *ReportBuilder) WithTag(tag string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithTags(tag)
	return b
}

// WithAdditional appends a secondary location.
func (b *ReportBuilder) WithAdditional(loc Location) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithAdditional(loc)
	return b
}

// WithUnnecessary names the additional locations to fade.
func (b *ReportBuilder) WithUnnecessary(indices ...int) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithUnnecessary(indices...)
	return b
}

// Emit sends diagnostic to underlying reporter exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.diag)
	}
	b.emitted = true
}

// Diagnostic returns accumulated diagnostic without emitting.
func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter: адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// SuppressReporter marks diagnostics whose primary location satisfies
// Suppressed before forwarding them.
type SuppressReporter struct {
	Next       Reporter
	Suppressed func(Location) bool
}

func (r SuppressReporter) Report(d Diagnostic) {
	if r.Next == nil {
		return
	}
	if r.Suppressed != nil && r.Suppressed(d.Location) {
		d = d.WithSuppressed(true)
	}
	r.Next.Report(d)
}
