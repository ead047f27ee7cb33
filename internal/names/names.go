package names

import "strings"

// MethodSep joins a class name and a method name into the single function
// namespace used by generated code. It cannot occur in source identifiers.
const MethodSep = "$"

// QualifyMethod returns the function identifier of a method, e.g. "Point$norm".
func QualifyMethod(class, method string) string {
	return class + MethodSep + method
}

// SplitMethod is the inverse of QualifyMethod. Plain function names report
// ok == false.
func SplitMethod(qname string) (class, method string, ok bool) {
	class, method, ok = strings.Cut(qname, MethodSep)
	if !ok || class == "" || method == "" {
		return "", "", false
	}
	return class, method, true
}
