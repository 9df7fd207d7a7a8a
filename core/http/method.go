package http

// Method is a recognized HTTP request method
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodHead
	MethodOptions
	MethodConnect
	MethodTrace
)

var methodNames = [...]string{
	MethodUnknown: "",
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodPatch:   "PATCH",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
	MethodConnect: "CONNECT",
	MethodTrace:   "TRACE",
}

// ParseMethod matches a request-line token against the known verbs.
// Matching is case-sensitive: "get" is not a method.
func ParseMethod(token string) (Method, bool) {
	switch token {
	case "GET":
		return MethodGet, true
	case "POST":
		return MethodPost, true
	case "PUT":
		return MethodPut, true
	case "DELETE":
		return MethodDelete, true
	case "PATCH":
		return MethodPatch, true
	case "HEAD":
		return MethodHead, true
	case "OPTIONS":
		return MethodOptions, true
	case "CONNECT":
		return MethodConnect, true
	case "TRACE":
		return MethodTrace, true
	}
	return MethodUnknown, false
}

// String returns the wire name of the method
func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return ""
}
