// Package errors provides coded, categorized errors for urlstore.
//
// Every error that reaches a user through the CLI or the host API carries a
// registered code:
//   - E100-E199 route: building paths from route ids and params
//   - E200-E299 config: reading urlstore.json and URLSTORE_* variables
//   - E300-E349 protocol: the remote host websocket protocol
//   - E350-E399 cli: command-line arguments
//
// # Usage
//
//	err := errors.New(errors.CodeMissingParam).
//	    WithDetailf("route %q needs param %q", "/blog/[slug]", "slug").
//	    WithSuggestion("Pass --param slug=<value>")
//
//	errors.Print(os.Stderr, err)
//	// Output:
//	// ERROR E100: Missing route parameter
//	//
//	//   route "/blog/[slug]" needs param "slug"
//	//
//	//   The route id has a required [param] segment with no value in the
//	//   params map.
//	//
//	//   Hint: Pass --param slug=<value>
//
// Errors match by code with errors.Is, and wrap their cause for errors.As.
package errors
