// Package gridapi is the HTTP client for the grid data endpoints.
//
// Three read-only resources are exposed:
//
//   - GET /api/power-usage returns the daily predicted/actual series.
//   - GET /api/grid-events returns one page of the event log.
//   - GET /api/grid-events/metadata returns the event count and page size.
//
// The data endpoints accept a delay parameter that makes the server hold the
// response, which is how the dashboard demonstrates slow first loads:
//
//	client, err := gridapi.NewClient("127.0.0.1:7480")
//	if err != nil {
//		return err
//	}
//	page, err := client.WithDelay(0).FetchGridEvents(ctx, 2, 5)
//
// Transport failures and non-2xx responses come back as *NetworkError and
// malformed bodies as *DecodeError. Both unwrap to the underlying cause.
package gridapi
