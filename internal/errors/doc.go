// Package errors provides coded, actionable errors for the inputwire
// command and its configuration.
//
// Each code (e.g., "E102") maps to a category, a short message and a
// suggestion. Callers add the specifics with WithDetail and Wrap:
//
//	err := errors.New("E102").
//	    WithDetail("window.size is 0")
//
//	fmt.Print(err.Format())
//	// ERROR E102: Invalid window size
//	//   window.size is 0
//	//   Hint: window.size must be between 1 and 64 and identical on client and server
//
// The codec packages under pkg/ do not use this package; they return
// sentinel errors matched with the standard errors.Is.
package errors
