// Package api provides the HTTP client for the school management REST API.
//
// # Overview
//
// The client translates resource operations into HTTP calls, attaches the
// bearer token of the current session and decodes responses into typed,
// validated structs. It never touches the query cache; callers decide what
// to do with results.
//
// # Architecture
//
//   - client.go: Client, request plumbing, login, uploads and batch calls
//   - resource.go: generic Resource[T, In] with List/Get/Create/Update/Delete
//   - decode.go: validated decoding and list envelope normalization
//   - errors.go: the Error type and its Kind taxonomy
//   - types.go: entities and request payloads
//
// # Client Usage
//
//	client, err := api.NewClient("https://lms.example.com",
//		api.WithTokenSource(sess),
//		api.WithUnauthorizedHook(sess.Clear),
//	)
//	if err != nil {
//		return err
//	}
//	classes, err := client.Classes().List(ctx, nil)
//
// # Lists
//
// List endpoints answer either with a bare array or with a page envelope
// {"content": [...]}. Both decode to the same []T; null decodes to an empty
// slice.
//
// # Error Handling
//
// Every failure is an *Error whose Kind tells callers how to react:
//
//   - KindNoToken: nobody is signed in; the request was not sent
//   - KindTransport: connection refused, timeouts, DNS failures
//   - KindAuth: 401/403 or an expired JWT; the view should force a sign-in
//   - KindValidation: other 4xx, or local payload validation; see Fields
//   - KindServer: 5xx; logged with method, path and status
//   - KindDecode: malformed JSON or a payload that failed validation
//
// Nothing is retried automatically.
//
// # Thread Safety
//
// The Client is safe for concurrent use.
package api
