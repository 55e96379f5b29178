// Package pagination provides lazy, sequential iteration over paginated
// Ishmael Insights endpoints.
//
// The API pages with limit/offset and, on some endpoints, an opaque
// next_cursor token. An Iterator requests one page at a time and only when
// the rows of the previous page have been consumed, so abandoning an
// iterator early never costs more than the page already in hand.
//
// Example usage:
//
//	it, err := apiClient.IterTeams(client.TeamsQuery{League: "cbb"}, 200)
//	if err != nil {
//		return err
//	}
//	for it.Next(ctx) {
//		team := it.Row()
//		...
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// The iterator:
//   - sends limit=pageSize with every request
//   - sends the server's next_cursor as cursor when the previous page had one,
//     and offset=<rows seen so far> otherwise
//   - stops after an empty page, a short page, or an explicit end signal
//   - surfaces a fetch failure through Err after all earlier rows were yielded
//   - never retries and never has more than one request in flight
package pagination
