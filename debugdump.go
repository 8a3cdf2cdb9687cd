package binstream

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DumpType renders a TypeDescriptor's shape (wire kind, base, fields or
// element/key types) for use in test failure messages, the way a
// mismatched structure is easiest to diagnose by eye rather than by
// reading a reflect.Type's default String().
func DumpType(desc *TypeDescriptor) string {
	if desc == nil {
		return "<nil type>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (assembly %s, wire=%s)\n", desc.FullName, assemblyLabel(desc.Assembly), desc.Wire)
	if desc.Base != nil {
		fmt.Fprintf(&b, "  base: %s\n", desc.Base.FullName)
	}
	for _, f := range desc.Fields {
		transient := ""
		if f.Transient {
			transient = " [transient]"
		}
		fmt.Fprintf(&b, "  field %s.%s %s%s\n", f.DeclaringType, f.Name, fieldTypeLabel(f.FieldType), transient)
	}
	if desc.Key != nil {
		fmt.Fprintf(&b, "  key: %s\n", desc.Key.FullName)
	}
	if desc.Elem != nil {
		fmt.Fprintf(&b, "  elem: %s\n", desc.Elem.FullName)
	}
	if desc.FixedLen > 0 {
		fmt.Fprintf(&b, "  len: %d\n", desc.FixedLen)
	}
	return b.String()
}

func assemblyLabel(a *AssemblyDescriptor) string {
	if a == nil {
		return "<none>"
	}
	return a.Name
}

func fieldTypeLabel(desc *TypeDescriptor) string {
	if desc == nil {
		return "<nil>"
	}
	return desc.FullName
}

// DumpReadPlan renders a ReadPlan for test failure messages: one line
// per entry naming its kind and the field it targets.
func DumpReadPlan(plan ReadPlan) string {
	var b strings.Builder
	for _, entry := range plan {
		switch entry.Tag {
		case PlanRead:
			fmt.Fprintf(&b, "read  %s.%s\n", entry.Field.DeclaringType, entry.Field.Name)
		case PlanSkip:
			fmt.Fprintf(&b, "skip  %s\n", fieldTypeLabel(entry.SkipType))
		case PlanConstructorInit:
			fmt.Fprintf(&b, "ctor  %s.%s\n", entry.Field.DeclaringType, entry.Field.Name)
		default:
			fmt.Fprintf(&b, "?     %v\n", entry)
		}
	}
	return b.String()
}

// DumpValue is a thin go-spew wrapper for ad hoc debugging in tests:
// it suppresses pointer addresses and capacities so repeated runs of
// the same test produce byte-identical output.
func DumpValue(v interface{}) string {
	return dumpConfig.Sdump(v)
}
