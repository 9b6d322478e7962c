// Package intake exposes form definitions and submissions over net/http.
//
// Routes are registered with method patterns on a *http.ServeMux (or any Mux)
// under a base path:
//
//	GET    {base}/forms
//	GET    {base}/forms/{form}
//	GET    {base}/forms/{form}/options/{field}?q=&limit=
//	POST   {base}/forms/{form}/submissions
//	POST   {base}/forms/{form}/sessions
//	GET    {base}/sessions/{id}
//	DELETE {base}/sessions/{id}
//	POST   {base}/sessions/{id}/fields
//	POST   {base}/sessions/{id}/next
//	POST   {base}/sessions/{id}/back
//	POST   {base}/sessions/{id}/steps/{step}
//	POST   {base}/sessions/{id}/submit
//	GET    {base}/openapi.json
//
// One-shot submissions answer 201 with the stored id, 422 with the first
// failing step and its errors, or 502 with a retry message when the store
// fails. Server-held sessions expire after SessionTTL; StartSweeper removes
// them on a cron schedule.
package intake
