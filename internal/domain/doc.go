// Package domain holds the payloads and typed errors shared by every
// component of the water-watch service.
//
// # Water bodies
//
// A feature is an ephemeral pond from the static inventory, identified by
// its uniqID. Its fill state is derived from optical imagery: the water
// fraction is the share of valid pixels inside the polygon that pass the
// water test, and maps to a [PondClass]:
//
//	fraction <= 0.25  dry
//	fraction <= 0.75  partial
//	fraction >  0.75  likely-full
//
// A pond whose valid-pixel share is below one half is no-data; it is never
// given a class by default.
//
// # Time series
//
// [TimeSeriesPoint] timestamps encode as unix milliseconds, the unit the
// charting front end consumes. A nil Value means the scene covered the pond
// but masked every pixel. Forecast series reuse the same payload with
// Value holding the predicted wet fraction of the pond area, in [0,1].
//
// # Errors
//
// Component boundaries return [*Error] with one of four kinds. Callers match
// with errors.Is against the sentinels ([ErrDataUnavailable],
// [ErrTransientBackend], [ErrInvalidInput], [ErrConfiguration]); the HTTP
// layer maps kinds onto status codes and writes an [ErrorPayload].
package domain
