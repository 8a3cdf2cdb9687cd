package binstream

// PlanTag names what a ReadPlanEntry asks the object reader to do with
// the next bytes on the stream for one field.
type PlanTag int

const (
	// PlanRead decodes the stream's next field value and assigns it
	// to Field (which belongs to the runtime type; Field.FieldType
	// describes what to decode).
	PlanRead PlanTag = iota
	// PlanSkip decodes the next field value using SkipType and
	// discards it; no assignment happens, but identities and type
	// stamps encountered during the recursive descent are still
	// processed normally.
	PlanSkip
	// PlanConstructorInit consumes no bytes: Field is transient on the
	// wire, and the reader leaves it as allocated (its zero value); no
	// construction logic is run for it.
	PlanConstructorInit
)

// ReadPlanEntry is one instruction in a ReadPlan, the ordered sequence
// the stamp comparator produces for reading a single instance
//.
type ReadPlanEntry struct {
	Tag      PlanTag
	Field    *FieldDescriptor // set for PlanRead and PlanConstructorInit
	SkipType *TypeDescriptor  // set for PlanSkip
}

// ReadPlan is the ordered list of read instructions the object reader
// executes for one instance of a type, in the stream's field order
//.
type ReadPlan []ReadPlanEntry

// CompareTypes reconciles prev (read from a type stamp) against cur
// (built from the runtime type via describeType) and returns the
// ordered ReadPlan, or a TypeStructureChangedError naming the first
// offending field if a drift is found that tol does not permit.
func CompareTypes(prev, cur *TypeDescriptor, tol VersionTolerance) (ReadPlan, error) {
	// Step 1: fast path, byte-identical structure.
	if prev.structuralFingerprint() == cur.structuralFingerprint() {
		return identityPlan(cur), nil
	}
	// Step 2: structure differs, must be explicitly allowed.
	if !tol.has(AllowGuidChange) {
		return nil, &TypeStructureChangedError{TypeName: cur.FullName, Kind: StructureHashChanged}
	}

	// Step 5: base-type identity.
	if baseTypesDiffer(prev.Base, cur.Base) && !tol.has(AllowInheritanceChainChange) {
		return nil, &TypeStructureChangedError{TypeName: cur.FullName, Kind: BaseTypeChanged}
	}

	// Step 6: assembly version drift.
	if prev.Assembly.Name == cur.Assembly.Name && prev.Assembly.Version != cur.Assembly.Version {
		if !tol.has(AllowAssemblyVersionChange) {
			return nil, &TypeStructureChangedError{TypeName: cur.FullName, Kind: AssemblyVersionChanged}
		}
	}

	prevFields := prev.NonTransientFields()
	curFields := cur.NonTransientFields()

	curByName := make(map[string]*FieldDescriptor, len(curFields))
	for _, f := range curFields {
		curByName[f.Name] = f
	}
	remaining := make(map[string]*FieldDescriptor, len(prevFields))
	for _, f := range prevFields {
		remaining[f.Name] = f
	}

	// Step 3: walk cur's fields.
	var firstAdded, firstChanged string
	for _, cf := range curFields {
		pf, ok := remaining[cf.Name]
		if !ok {
			if firstAdded == "" {
				firstAdded = cf.Name
			}
			continue
		}
		if !fieldTypesCompatible(pf.FieldType, cf.FieldType) {
			if firstChanged == "" {
				firstChanged = cf.Name
			}
			// Field type changes are always fatal, regardless of tol.
			return nil, &TypeStructureChangedError{TypeName: cur.FullName, Field: cf.Name, Kind: FieldChanged}
		}
		delete(remaining, cf.Name)
	}

	// Step 4: leftover prev fields are removed. Walk prevFields again
	// (not the map) to keep "first offending field" deterministic.
	var firstRemoved string
	for _, pf := range prevFields {
		if _, stillRemaining := remaining[pf.Name]; stillRemaining && firstRemoved == "" {
			firstRemoved = pf.Name
		}
	}

	// Step 7: field addition/removal permissions.
	if firstAdded != "" && !tol.has(AllowFieldAddition) {
		return nil, &TypeStructureChangedError{TypeName: cur.FullName, Field: firstAdded, Kind: FieldAdded}
	}
	if firstRemoved != "" && !tol.has(AllowFieldRemoval) {
		return nil, &TypeStructureChangedError{TypeName: cur.FullName, Field: firstRemoved, Kind: FieldRemoved}
	}

	// Build the plan in the STREAM's field order: for each field prev
	// wrote, either Read it into the matching cur field or Skip it if
	// cur no longer has it.
	plan := make(ReadPlan, 0, len(prevFields)+4)
	for _, pf := range prevFields {
		if cf, ok := curByName[pf.Name]; ok {
			plan = append(plan, ReadPlanEntry{Tag: PlanRead, Field: cf})
		} else {
			plan = append(plan, ReadPlanEntry{Tag: PlanSkip, SkipType: pf.FieldType})
		}
	}
	plan = appendConstructorInitEntries(plan, cur)
	return plan, nil
}

// identityPlan is used when prev and cur are structurally identical:
// stream order equals cur's declared order, so every non-transient
// field reads directly.
func identityPlan(cur *TypeDescriptor) ReadPlan {
	fields := cur.NonTransientFields()
	plan := make(ReadPlan, 0, len(fields)+2)
	for _, f := range fields {
		plan = append(plan, ReadPlanEntry{Tag: PlanRead, Field: f})
	}
	return appendConstructorInitEntries(plan, cur)
}

func appendConstructorInitEntries(plan ReadPlan, cur *TypeDescriptor) ReadPlan {
	for _, f := range cur.AllFieldsBaseFirst() {
		if f.ConstructorRecreated {
			plan = append(plan, ReadPlanEntry{Tag: PlanConstructorInit, Field: f})
		}
	}
	return plan
}

func baseTypesDiffer(prevBase, curBase *TypeDescriptor) bool {
	if (prevBase == nil) != (curBase == nil) {
		return true
	}
	if prevBase == nil {
		return false
	}
	return !prevBase.Equal(curBase)
}

// fieldTypesCompatible reports whether a field's declared type may
// carry over unchanged between prev and cur. Field type changes are
// never tolerated, so this is exact AQN
// equality, not assignability.
func fieldTypesCompatible(prevType, curType *TypeDescriptor) bool {
	if prevType == nil || curType == nil {
		return prevType == curType
	}
	return prevType.AssemblyQualifiedName() == curType.AssemblyQualifiedName()
}
