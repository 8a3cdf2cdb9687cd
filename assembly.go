package binstream

import (
	"fmt"
	"reflect"
	"sync"
)

// AssemblyDescriptor identifies a compilation unit: the Go analogue of
// a .NET assembly. In this Go port "assembly" maps onto a package
// path; Version/Culture/Token exist so the wire format and the
// version-tolerance comparator (stamp.go) can express assembly-version
// drift, even though a Go build has no first-class equivalent of
// assembly versioning — callers that need it populate Version via
// RegisterAssemblyVersion.
type AssemblyDescriptor struct {
	Name     string
	Version  [4]int32
	Culture  string
	Token    []byte // len 0 or 8
	ModuleID GUID
}

// AssemblyQualifiedName is a pure function of the descriptor fields,
// used for equality and hashing. The culture renders as the literal
// "neutral" when empty; the underlying Culture field is still compared
// verbatim by equality, never the rendered string.
func (a *AssemblyDescriptor) AssemblyQualifiedName() string {
	culture := a.Culture
	if culture == "" {
		culture = "neutral"
	}
	token := "null"
	if len(a.Token) == 8 {
		token = fmt.Sprintf("%x", a.Token)
	}
	return fmt.Sprintf("%s, Version=%d.%d.%d.%d, Culture=%s, PublicKeyToken=%s",
		a.Name, a.Version[0], a.Version[1], a.Version[2], a.Version[3], culture, token)
}

func (a *AssemblyDescriptor) Equal(other *AssemblyDescriptor) bool {
	if other == nil {
		return false
	}
	return a.Name == other.Name && a.Version == other.Version &&
		a.Culture == other.Culture && string(a.Token) == string(other.Token)
}

// assemblyCache is the process-wide, insert-only cache of assembly
// descriptors keyed by Go package path, protected by a concurrent hash
// map with insert-once semantics, the same discipline the process-wide
// type descriptor cache uses. Grounded on type.go's
// typeResolver.typesInfo map, which grows monotonically and is never
// pruned.
type assemblyCache struct {
	mu    sync.RWMutex
	byPkg map[string]*AssemblyDescriptor
}

var globalAssemblyCache = &assemblyCache{byPkg: make(map[string]*AssemblyDescriptor)}

// assemblyFor returns the (possibly newly built and cached)
// AssemblyDescriptor for the Go package that declares typ.
func assemblyFor(typ reflect.Type) *AssemblyDescriptor {
	pkgPath := typ.PkgPath()
	if pkgPath == "" {
		pkgPath = "builtin"
	}
	globalAssemblyCache.mu.RLock()
	a, ok := globalAssemblyCache.byPkg[pkgPath]
	globalAssemblyCache.mu.RUnlock()
	if ok {
		return a
	}
	globalAssemblyCache.mu.Lock()
	defer globalAssemblyCache.mu.Unlock()
	if a, ok := globalAssemblyCache.byPkg[pkgPath]; ok {
		return a
	}
	a = &AssemblyDescriptor{
		Name:     pkgPath,
		ModuleID: deriveGUID([]byte(pkgPath)),
	}
	globalAssemblyCache.byPkg[pkgPath] = a
	return a
}

// RegisterAssemblyVersion lets a caller attach a version/culture/token
// to a package path before first use, for tests that exercise
// AllowAssemblyVersionChange. It is a no-op once the package's
// descriptor is cached, which happens the first time any of its types
// is described, and so at the latest when one is first stamped onto a
// stream (insert-once).
func RegisterAssemblyVersion(pkgPath string, version [4]int32, culture string, token []byte) {
	globalAssemblyCache.mu.Lock()
	defer globalAssemblyCache.mu.Unlock()
	if _, ok := globalAssemblyCache.byPkg[pkgPath]; ok {
		return
	}
	globalAssemblyCache.byPkg[pkgPath] = &AssemblyDescriptor{
		Name:     pkgPath,
		Version:  version,
		Culture:  culture,
		Token:    token,
		ModuleID: deriveGUID([]byte(pkgPath)),
	}
}

func (w *Writer) writeAssemblyStamp(a *AssemblyDescriptor) {
	w.WriteString(a.Name)
	for _, v := range a.Version {
		w.WriteInt32(v)
	}
	w.WriteString(a.Culture)
	w.WriteByte_(byte(len(a.Token)))
	if len(a.Token) > 0 {
		w.WriteRaw(a.Token)
	}
	w.WriteGUID(a.ModuleID)
}

func (r *Reader) readAssemblyStamp() (*AssemblyDescriptor, error) {
	a := &AssemblyDescriptor{}
	a.Name = r.ReadString()
	for i := range a.Version {
		a.Version[i] = r.ReadInt32()
	}
	a.Culture = r.ReadString()
	tokenLen := r.ReadByte_()
	if tokenLen != 0 && tokenLen != 8 {
		return nil, &StreamCorruptedError{Reason: "assembly token length must be 0 or 8"}
	}
	if tokenLen > 0 {
		a.Token = r.ReadRaw(int(tokenLen))
	}
	a.ModuleID = r.ReadGUID()
	if r.Err() != nil {
		return nil, r.Err()
	}
	return a, nil
}
