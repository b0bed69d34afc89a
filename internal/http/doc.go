// Package http provides HTTP handlers and middleware for the reservation API.
//
// The router exposes the following endpoints:
//   - GET /computers: the bookable computers ordered by name. Response:
//     {"computers":[{"id","name"}]}.
//   - GET /reservations?date=YYYY-MM-DD[&computer_id=]: reservations starting on the
//     local calendar day, ordered by start. date defaults to today.
//   - POST /reservations: books a computer. Body: {"computer_id","start_time",
//     "end_time","user_name","notes"}. Responds 201 with the reservation, 409 when the
//     window overlaps another reservation of the same computer.
//   - GET /reservations/all[?limit=N]: purges reservations that ended before today and
//     returns the rest newest first together with a per-date grouping.
//   - PUT /reservations/{id}: partial update. Body: {"user_name","start_time",
//     "end_time","notes"}; omitted times keep their stored value.
//   - DELETE /reservations/{id}: removes a reservation. Response: {"success":true}.
//   - GET /healthz: storage liveness.
//
// Instants cross the boundary as RFC 3339 strings with an explicit offset or Z.
// Strings without an offset are rejected. Responses render instants in the
// configured service timezone. The `reservationDTO` payload defined in
// reservation_handler.go is shared by every reservation endpoint.
package http
