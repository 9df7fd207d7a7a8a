package core

// Dispatch outcomes reported on access records
const (
	OutcomeHandled   = "handled"
	OutcomeVetoed    = "vetoed"
	OutcomeNotFound  = "not_found"
	OutcomeStatic    = "static"
	OutcomeCancelled = "cancelled"
)

// Route labels for requests that did not match a registered route
const (
	RouteUnmatched    = "<unmatched>"
	staticRoutePrefix = "static:"
)

// Bodies of the responses the dispatcher produces itself
const (
	bodyBadRequest  = "Bad Request"
	bodyNotFound    = "Not Found"
	bodyUnavailable = "Service Unavailable"
)
