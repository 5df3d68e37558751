package diag

import "maps"

func New(sev Severity, code Code, primary Location, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Location: primary,
		Message:  msg,
	}
}

func NewError(code Code, primary Location, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithTags(tags ...string) Diagnostic {
	d.Tags = append(append([]string(nil), d.Tags...), tags...)
	return d
}

func (d Diagnostic) WithAdditional(locs ...Location) Diagnostic {
	d.Additional = append(append([]Location(nil), d.Additional...), locs...)
	return d
}

func (d Diagnostic) WithProperty(key, value string) Diagnostic {
	props := make(map[string]string, len(d.Properties)+1)
	maps.Copy(props, d.Properties)
	props[key] = value
	d.Properties = props
	return d
}

// WithUnnecessary marks additional locations (by index) as the spans to fade.
func (d Diagnostic) WithUnnecessary(indices ...int) Diagnostic {
	return d.WithProperty(PropUnnecessaryIndices, encodeIndices(indices))
}

func (d Diagnostic) WithSuppressed(suppressed bool) Diagnostic {
	d.Suppressed = suppressed
	return d
}

func (d Diagnostic) WithOwner(owner OwnerID) Diagnostic {
	d.Owner = owner
	return d
}
