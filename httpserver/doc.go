// Package httpserver exposes the context factory over HTTP.
//
// Three operation endpoints:
//
//   - POST /api/admin/payload - replace the stored payload. The request body
//     IS the payload, as a raw unstructured byte stream; no JSON envelope.
//     Restricted to the factory's own identity.
//   - GET /api/public/payload - read the current payload bytes.
//   - POST /api/public/provision/{short_name} - provision a child context.
//     Accepted provisioning is asynchronous: the response only confirms
//     dispatch.
//
// Plus GET /api/public/info and the usual health and drain endpoints. The
// metrics server runs on a separate listener.
package httpserver
